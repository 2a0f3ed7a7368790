package main

import (
	"context"
	"time"
)

// sweepExpiredRequests periodically closes requests whose deadline has
// passed, so the marketplace never shows stale asks. Runs until the context
// is cancelled at shutdown.
func (app *application) sweepExpiredRequests(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := app.store.Requests.CloseExpired(ctx)
			if err != nil {
				app.logger.Errorw("error closing expired requests", "error", err)
				continue
			}
			if closed > 0 {
				app.logger.Infow("closed expired requests", "count", closed)
			}
		}
	}
}
