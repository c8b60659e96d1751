// Package extension provides the Forge extension for mounting Cadence.
//
// The extension implements [forge.Extension] and integrates Cadence into the
// Forge application framework by:
//   - Initializing the engine with a configured state store and transport
//   - Mounting the service routes with OpenAPI metadata under a configurable prefix
//   - Starting the dispatcher and trigger scheduler on application start
//   - Gracefully stopping them on application shutdown
//   - Providing health checks via the state store's Ping
//   - Registering the Cadence instance in Forge's DI container
//
// Usage:
//
//	app := forge.New(
//	    forge.WithExtensions(
//	        extension.New(
//	            extension.WithStateStore(redisStore),
//	            extension.WithTransport(redisTransport),
//	            extension.WithPrefix("/cadence"),
//	        ),
//	    ),
//	)
//	app.Run()
package extension
