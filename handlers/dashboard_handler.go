package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"codeGoalsAPI/internal/types/target"
	"codeGoalsAPI/middleware"
	"codeGoalsAPI/services"
)

type DashboardHandler struct {
	ratingService   *services.RatingService
	activityService *services.ActivityService
	targetService   *services.TargetService
	accounts        *services.AccountService
}

func NewDashboardHandler(ratingService *services.RatingService, activityService *services.ActivityService, targetService *services.TargetService, accounts *services.AccountService) *DashboardHandler {
	return &DashboardHandler{
		ratingService:   ratingService,
		activityService: activityService,
		targetService:   targetService,
		accounts:        accounts,
	}
}

// GetDashboard assembles the home-screen payload: the discipline rating,
// the separate personal-rating accumulator, solve counts, the activity
// window, and the cached handle.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	uid, _ := provider.CurrentAccountID()
	email, _ := provider.CurrentAccountEmail()

	rating, err := h.ratingService.GetRating(ctx, uid)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	personal, err := h.ratingService.PersonalRating(ctx, email)
	if err != nil {
		log.Printf("DashboardHandler: personal rating failed: %v", err)
	}

	solved, err := h.targetService.CountByStatus(ctx, email, target.StatusAchieved)
	if err != nil {
		log.Printf("DashboardHandler: solve count failed: %v", err)
	}
	pending, err := h.targetService.CountByStatus(ctx, email, target.StatusPending)
	if err != nil {
		log.Printf("DashboardHandler: pending count failed: %v", err)
	}

	window, err := h.activityService.ActivityWindow(ctx, provider, 90)
	if err != nil {
		log.Printf("DashboardHandler: activity window unavailable: %v", err)
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"rating":          services.ClampDisplay(rating),
		"personal_rating": personal,
		"solved_count":    solved,
		"pending_count":   pending,
		"activity":        window,
		"handle":          h.activityService.CachedHandle(ctx, provider),
	})
}

// RecordActivity mirrors today's practice counts to the cloud store.
func (h *DashboardHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}

	if err := h.activityService.MirrorToday(ctx, provider); err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Activity recorded"})
}

type registerAccountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username"`
}

// RegisterAccount binds the verified token subject to an account email,
// creating the local account record the other endpoints rely on.
func (h *DashboardHandler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	uid, ok := middleware.GetAccountID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req registerAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.accounts.Register(ctx, uid, req.Email, req.Username); err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "Account registered"})
}
