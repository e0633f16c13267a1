// Package main contains the posed server: a pose engine anchored to the
// WGS-84 ellipsoid behind an HTTP surface.
package main

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.viam.com/utils"

	"github.com/geekmug/posed"
	"github.com/geekmug/posed/config"
	"github.com/geekmug/posed/geodesy"
	"github.com/geekmug/posed/persist"
	"github.com/geekmug/posed/web"
)

var logger = golog.NewDevelopmentLogger("posed")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// newProductionLogger builds the zap-backed logger the server runs with when
// debug logging is off: JSON to stdout, info level, no stacktraces.
func newProductionLogger() (golog.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.DisableStacktrace = true
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return zapLogger.Sugar().Named("posed"), nil
}

// Arguments for the command.
type Arguments struct {
	ConfigFile  string `flag:"config,usage=path to a JSON5 config file"`
	BindAddress string `flag:"bind,usage=override the web bind address"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := config.Default()
	if argsParsed.ConfigFile != "" {
		if cfg, err = config.Read(argsParsed.ConfigFile); err != nil {
			return err
		}
	}
	if argsParsed.BindAddress != "" {
		cfg.Web.BindAddress = argsParsed.BindAddress
	}
	if cfg.Debug {
		logger = golog.NewDebugLogger("posed")
	} else {
		if logger, err = newProductionLogger(); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	service := posed.NewPoseService(geodesy.WGS84(), logger,
		posed.WithMetrics(registry))
	defer func() {
		err = multierr.Combine(err, service.Close())
	}()

	geoid := geodesy.ZeroGeoid()
	if cfg.GeoidOffset != 0 {
		geoid = geodesy.StaticGeoid(cfg.GeoidOffset)
	}

	if cfg.Save.Filename != "" {
		store := persist.NewStore(service, cfg.Save.Filename, logger)
		if err := store.Load(); err != nil {
			return err
		}
		if cfg.Save.Cron != "" {
			if err := store.StartAutosave(cfg.Save.Cron); err != nil {
				return err
			}
			// Mirror the autosave with a save on clean shutdown.
			defer func() {
				err = multierr.Combine(err, store.Save())
			}()
		}
		if cfg.Save.Watch {
			if err := store.StartWatching(); err != nil {
				return err
			}
		}
		defer func() {
			err = multierr.Combine(err, store.Close())
		}()
	}

	server := web.NewServer(service, geoid, logger,
		web.WithAllowedOrigins(cfg.Web.AllowedOrigins),
		web.WithMetricsGatherer(registry))
	return server.Serve(ctx, cfg.Web.BindAddress)
}
