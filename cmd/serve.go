package cmd

import (
	"context"

	"dailybrief/internal/server"
)

func serveCmd(ctx context.Context, a *app) error {
	srv := server.New(a.useCase, server.Options{CORS: a.cfg.Server.CORS, Gatherer: a.registry})
	return srv.Run(ctx, a.cfg.Server.Listen)
}

// watchCmd refreshes the brief and prunes the cache on schedule until interrupted.
func watchCmd(ctx context.Context, a *app) error {
	a.useCase.TaskRefresh(a.cfg.Watch.Cron)
	a.useCase.TaskPrune(a.cfg.Watch.PruneCron)
	<-ctx.Done()
	a.useCase.Stop()
	return nil
}
