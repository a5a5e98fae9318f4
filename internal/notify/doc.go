// Package notify delivers channel notifications to remote consumers without
// ever blocking the hardware or command paths.
//
// The Publisher implements channel.Listener. For every transition it builds
// one Request per route (MQTT topic, webhook URL, InfluxDB measurement,
// WebSocket stream) and enqueues it on the Dispatcher. The Dispatcher owns a
// bounded FIFO queue and a single worker that hands each request to the
// named Sink exactly once. A full queue rejects new requests immediately; a
// failed delivery is logged with its correlation id and dropped.
//
// On Stop the worker keeps delivering for at most the drain timeout, then
// discards what is left and logs the count.
package notify
