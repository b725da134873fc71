// Package factory creates configured mediamux transmitters.
//
// The factory keeps a default TransmitterConfig, seeded from built-in defaults
// and the environment, so that applications and tests can build transmitters
// without repeating configuration.
//
// # Configuration
//
// The factory supports configuration via environment variables:
//   - MEDIAMUX_COMPONENTS: number of components per session (1-16, default 2)
//   - MEDIAMUX_TOS: initial IPv4 TOS / IPv6 traffic class, decimal or 0x hex (0-255)
//   - MEDIAMUX_READ_BUFFER: per-port receive buffer in bytes (1500-65507)
//   - MEDIAMUX_DO_TIMESTAMP: "true" or "false" to stamp received datagrams
//
// Unparseable or out of range values are logged and the default is kept.
//
// # Usage
//
//	factory := NewTransmitterFactory()
//
//	t, err := factory.CreateTransmitter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
// Attach a media pipeline to every transmitter created afterwards:
//
//	config := factory.GetDefaultConfig()
//	config.Pipeline = myPipeline
//	if err := factory.UpdateDefaultConfig(config); err != nil {
//	    log.Fatal(err)
//	}
package factory
