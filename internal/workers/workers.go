package workers

import (
	"context"
	"log"
	"time"

	"codeGoalsAPI/internal/auth"
	"codeGoalsAPI/services"
)

// StartSyncWorker runs the full reconciliation sequence on a fixed
// interval for the configured account. A failed run is logged and simply
// retried on the next tick; the protocol is idempotent so an interrupted
// sequence needs no cleanup.
func StartSyncWorker(ctx context.Context, syncService *services.SyncService, provider auth.AccountProvider, interval time.Duration) {
	if interval <= 0 {
		log.Println("Sync worker disabled (interval <= 0)")
		return
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("Sync worker stopping")
				return
			case <-ticker.C:
				runOnce(ctx, syncService, provider)
			}
		}
	}()
}

func runOnce(ctx context.Context, syncService *services.SyncService, provider auth.AccountProvider) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	report, err := syncService.FullSync(runCtx, provider)
	if err != nil {
		log.Printf("Background sync failed: %v", err)
		return
	}
	log.Printf("Background sync done: pushed=%d pulled_new=%d pulled_updated=%d history_new=%d",
		report.Pushed, report.PulledNew, report.PulledUpdated, report.HistoryNew)
}
