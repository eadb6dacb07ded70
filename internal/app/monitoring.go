package app

import (
	"context"
	"time"
)

// defaultSweepInterval is used when the configuration does not set one.
const defaultSweepInterval = 5 * time.Minute

// StartMonitoring launches the region sweep loop in the background. It
// returns immediately; the loop stops when ctx is canceled.
func (app *Application) StartMonitoring(ctx context.Context) {
	interval := app.ConfigService.Config.FetchInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	go app.MonitorService.Run(ctx, interval)
}
