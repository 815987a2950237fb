package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"codeGoalsAPI/internal/types/target"
	"codeGoalsAPI/services"
)

type TargetHandler struct {
	targetService *services.TargetService
	ratingService *services.RatingService
	metaService   *services.CodeforcesService
	accounts      *services.AccountService
}

func NewTargetHandler(targetService *services.TargetService, ratingService *services.RatingService, metaService *services.CodeforcesService, accounts *services.AccountService) *TargetHandler {
	return &TargetHandler{
		targetService: targetService,
		ratingService: ratingService,
		metaService:   metaService,
		accounts:      accounts,
	}
}

func (h *TargetHandler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	email, _ := provider.CurrentAccountEmail()

	var req target.CreateTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.targetService.CreateTarget(ctx, email, &req)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}

	// Best-effort difficulty stamp for problem targets; metadata outages
	// never block creation.
	if created.Type == target.TypeProblem && created.ProblemLink != "" {
		if rating, err := h.metaService.FetchProblemRating(ctx, created.ProblemLink); err == nil && rating > 0 {
			created.Rating = &rating
			if err := h.targetService.UpdateTarget(ctx, created); err != nil {
				log.Printf("TargetHandler: failed to store problem rating: %v", err)
			}
		} else if err != nil {
			log.Printf("TargetHandler: problem rating lookup failed: %v", err)
		}
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *TargetHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	email, _ := provider.CurrentAccountEmail()

	var (
		targets []*target.Target
	)
	if r.URL.Query().Get("archived") == "true" {
		targets, err = h.targetService.ListArchivedAchieved(ctx, email)
	} else {
		targets, err = h.targetService.ListActive(ctx, email)
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if targets == nil {
		targets = []*target.Target{}
	}
	respondWithJSON(w, http.StatusOK, targets)
}

// UpdateStatus moves a target to a terminal status. An achieved transition
// runs the rating engine synchronously and returns the new rating.
func (h *TargetHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	email, _ := provider.CurrentAccountEmail()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid target id")
		return
	}

	var req target.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.targetService.SetStatus(ctx, email, id, req.Status)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}

	response := map[string]any{"target": updated}
	if req.Status == target.StatusAchieved {
		newRating, err := h.ratingService.OnTargetCompleted(ctx, provider, updated.Deadline, time.Now().UTC())
		if err != nil {
			log.Printf("TargetHandler: rating update failed: %v", err)
		} else {
			response["rating"] = services.ClampDisplay(newRating)
		}
	}

	respondWithJSON(w, http.StatusOK, response)
}

func (h *TargetHandler) ArchiveTarget(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	email, _ := provider.CurrentAccountEmail()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid target id")
		return
	}

	if err := h.targetService.Archive(ctx, email, id); err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Target archived"})
}
