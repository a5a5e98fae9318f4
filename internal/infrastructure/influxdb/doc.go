// Package influxdb records channel state history in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Every state
// notification becomes a channel_state point tagged with device_id, type and
// channel; attach and detach become channel_status points.
//
// Writes are non-blocking and batched according to influxdb.batch_size and
// influxdb.flush_interval. Batch failures are reported through SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteChannelState("504221", "output", 3, true, requestID, time.Now())
package influxdb
