package handlers

import (
	"context"
	"net/http"
	"time"

	"codeGoalsAPI/services"
)

type SyncHandler struct {
	syncService *services.SyncService
	accounts    *services.AccountService
}

func NewSyncHandler(syncService *services.SyncService, accounts *services.AccountService) *SyncHandler {
	return &SyncHandler{syncService: syncService, accounts: accounts}
}

// TriggerSync runs the full reconciliation sequence for the authenticated
// account. A partial failure still returns the report for the phases that
// completed; the next trigger retries the rest.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}

	report, err := h.syncService.FullSync(ctx, provider)
	if err != nil {
		respondWithJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"report": report,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}
