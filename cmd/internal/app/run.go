package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the entrypoint behind `beekeeper serve`. It returns an error instead of
// calling os.Exit so deferred cleanup still runs.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		log.Error("app.init.fail", "err", err)
		return err
	}
	return a.Run(ctx)
}
