package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"codeGoalsAPI/internal/types/friendship"
	"codeGoalsAPI/services"
)

type FriendHandler struct {
	friendService *services.FriendService
	accounts      *services.AccountService
}

func NewFriendHandler(friendService *services.FriendService, accounts *services.AccountService) *FriendHandler {
	return &FriendHandler{friendService: friendService, accounts: accounts}
}

func (h *FriendHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}

	var req friendship.AddFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	edge, err := h.friendService.AddFriend(ctx, provider, req.FriendEmail)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, edge)
}

func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}

	friendEmail := mux.Vars(r)["email"]
	if err := h.friendService.RemoveFriend(ctx, provider, friendEmail); err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Friend removed"})
}

func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	email, _ := provider.CurrentAccountEmail()

	friends, err := h.friendService.ListFriends(ctx, email)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if friends == nil {
		friends = []*friendship.Friendship{}
	}
	respondWithJSON(w, http.StatusOK, friends)
}

// GetFriendStats resolves the friend's account and returns their public
// rating and solve count, degrading gracefully when reads are denied.
func (h *FriendHandler) GetFriendStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	provider, err := requestProvider(ctx, h.accounts)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}

	friendEmail := mux.Vars(r)["email"]
	stats, err := h.friendService.GetFriendPublicStats(ctx, provider, friendEmail)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
