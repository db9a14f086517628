// Command viewkit serves cached, paginated list endpoints over a PostgREST
// or SQL resource store.
//
// Configuration is read from config.yml, .env and VIEWKIT_* environment
// variables:
//
//	VIEWKIT_STORE_DRIVER=sqlite VIEWKIT_STORE_SQL_DSN=file:hotel.db viewkit
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/viewkit/bootstrap"
	"github.com/kbukum/viewkit/config"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/version"
)

func main() {
	var cfg config.Config
	if err := config.LoadConfig("viewkit", &cfg, config.WithEnvPrefix("VIEWKIT")); err != nil {
		fmt.Fprintf(os.Stderr, "viewkit: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewkit: %v\n", err)
		os.Exit(1)
	}

	build := version.Get()
	app.Logger.Info("viewkit starting", logger.Fields("build", build.Short(), "go", build.GoVersion, "built_at", build.BuildTime))

	ctx := context.Background()
	if _, err := newService(ctx, app); err != nil {
		app.Logger.Error("setup failed", logger.ErrorFields("setup", err))
		if stopErr := app.Shutdown(); stopErr != nil {
			app.Logger.Error("cleanup failed", logger.ErrorFields("shutdown", stopErr))
		}
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		app.Logger.Error("application stopped with error", logger.ErrorFields("run", err))
		os.Exit(1)
	}
}
