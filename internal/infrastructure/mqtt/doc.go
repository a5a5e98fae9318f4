// Package mqtt provides MQTT client connectivity for the I/O bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing of retained channel state, status and discovery messages
//   - Subscriptions to output and defaults command topics
//   - Bridge availability through a retained status topic and LWT
//
// # Topic Layout
//
//	phidget/{device}/{input|output}/{index}/state     retained {"state":"ON|OFF",...}
//	phidget/{device}/{input|output}/{index}/status    retained {"state":"attached|detached",...}
//	phidget/{device}/output/{index}/command           ON, OFF, 1, 0, true, false or JSON
//	phidget/{device}/defaults/command                 pattern such as "10*1"
//	phidget/bridge/status                             retained online/offline (LWT)
//	phidget/bridge/health                             periodic health report
//	phidget/bridge/resync                             republish every known state
//	homeassistant/{switch|binary_sensor}/.../config   retained discovery
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllOutputCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        device, _, index, _, err := mqtt.ParseChannelTopic(topic)
//	        ...
//	    })
package mqtt
