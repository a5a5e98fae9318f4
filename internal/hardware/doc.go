// Package hardware provides the channel.Source backends the bridge can drive:
//
//   - gpio: Raspberry Pi BCM pins through memory-mapped /dev/gpiomem
//   - relay16: SainSmart 16-channel USB relay board over its CH340 serial port
//   - simulated: an in-memory board for development and tests
//
// Backends are selected by name through a static table; see Build.
package hardware
