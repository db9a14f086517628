// Package bootstrap runs the lifecycle of a viewkit service.
//
// NewApp applies config defaults, validates and initializes the logger.
// Run then executes OnStart hooks, the ready check, OnReady hooks, blocks
// until SIGINT/SIGTERM or context cancellation, and runs OnStop hooks in
// reverse registration order within the graceful timeout.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnStart(openStore)
//	app.OnReady(srv.Start)
//	app.OnStop(srv.Stop)
//	err = app.Run(ctx)
package bootstrap
