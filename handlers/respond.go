package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"codeGoalsAPI/internal/auth"
	"codeGoalsAPI/middleware"
	"codeGoalsAPI/services"
)

var validate = validator.New()

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// statusFor maps the service failure taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateTarget),
		errors.Is(err, services.ErrDuplicateFriend):
		return http.StatusConflict
	case errors.Is(err, services.ErrSelfFriend),
		errors.Is(err, services.ErrEmptyInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// requestProvider builds the account provider for the authenticated
// request: uid from the verified token, email from the registered account
// record.
func requestProvider(ctx context.Context, accounts *services.AccountService) (auth.AccountProvider, error) {
	uid, ok := middleware.GetAccountID(ctx)
	if !ok {
		return nil, services.ErrNotAuthenticated
	}

	email, err := accounts.EmailFor(ctx, uid)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, services.ErrNotAuthenticated
		}
		return nil, err
	}
	return auth.StaticProvider{UID: uid, Email: email}, nil
}
