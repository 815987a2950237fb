package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"codeGoalsAPI/handlers"
	"codeGoalsAPI/internal/remote"
	"codeGoalsAPI/internal/resolver"
	"codeGoalsAPI/services"
	"codeGoalsAPI/tests/helpers"
)

type testAPI struct {
	router *mux.Router
	store  *remote.MemoryStore
	token  string
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()

	db := helpers.SetupTestDB(t)
	store := remote.NewMemoryStore()

	// Metadata stub so problem creation does not reach the real service.
	meta := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "OK",
			"result": {"problems": [{"contestId": 4, "index": "A", "name": "Watermelon", "rating": 800}]}
		}`))
	}))
	t.Cleanup(meta.Close)

	targetService := services.NewTargetService(db)
	ratingService := services.NewRatingService(db, store)
	activityService := services.NewActivityService(db, store)
	accountService := services.NewAccountService(db)
	syncService := services.NewSyncService(targetService, store, false)
	metaService := services.NewCodeforcesServiceWithBase(meta.URL)
	chain := resolver.NewChain(
		resolver.CachedUID{},
		resolver.ProfileDoc{Store: store},
		resolver.AccountQuery{Store: store},
		resolver.AdminLookup{},
	)
	friendService := services.NewFriendService(db, store, chain)

	targetHandler := handlers.NewTargetHandler(targetService, ratingService, metaService, accountService)
	friendHandler := handlers.NewFriendHandler(friendService, accountService)
	syncHandler := handlers.NewSyncHandler(syncService, accountService)
	dashboardHandler := handlers.NewDashboardHandler(ratingService, activityService, targetService, accountService)

	router := mux.NewRouter()
	protected := router.PathPrefix("/api/v1").Subrouter()
	protected.Use(helpers.MockAuthMiddleware)
	protected.HandleFunc("/account", dashboardHandler.RegisterAccount).Methods("POST")
	protected.HandleFunc("/targets", targetHandler.ListTargets).Methods("GET")
	protected.HandleFunc("/targets", targetHandler.CreateTarget).Methods("POST")
	protected.HandleFunc("/targets/{id}/status", targetHandler.UpdateStatus).Methods("PUT")
	protected.HandleFunc("/targets/{id}", targetHandler.ArchiveTarget).Methods("DELETE")
	protected.HandleFunc("/friends", friendHandler.ListFriends).Methods("GET")
	protected.HandleFunc("/friends", friendHandler.AddFriend).Methods("POST")
	protected.HandleFunc("/friends/{email}", friendHandler.RemoveFriend).Methods("DELETE")
	protected.HandleFunc("/sync", syncHandler.TriggerSync).Methods("POST")
	protected.HandleFunc("/dashboard", dashboardHandler.GetDashboard).Methods("GET")

	token, err := helpers.GenerateMockJWT("uid-alice")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	return &testAPI{router: router, store: store, token: token}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(t *testing.T) {
	t.Helper()
	rec := a.do(t, "POST", "/api/v1/account", map[string]string{
		"email":    "alice@example.com",
		"username": "alice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Register returned %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	api := setupAPI(t)

	req := httptest.NewRequest("GET", "/api/v1/targets", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without a token, got %d", rec.Code)
	}
}

func TestAPIRequiresRegisteredAccount(t *testing.T) {
	api := setupAPI(t)

	// A valid token whose account never registered has no email record.
	rec := api.do(t, "GET", "/api/v1/targets", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for unregistered account, got %d", rec.Code)
	}
}

func TestFullFlow(t *testing.T) {
	api := setupAPI(t)
	api.register(t)

	// Create a problem target; the metadata stub stamps its difficulty.
	rec := api.do(t, "POST", "/api/v1/targets", map[string]any{
		"type":         "problem",
		"name":         "Watermelon",
		"problem_link": "https://codeforces.com/problemset/problem/4/A",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create returned %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		Rating *int   `json:"rating"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode create response: %v", err)
	}
	if created.Status != "pending" {
		t.Fatalf("Expected pending status, got %s", created.Status)
	}
	if created.Rating == nil || *created.Rating != 800 {
		t.Fatalf("Expected difficulty 800 stamped, got %v", created.Rating)
	}

	// Duplicate creation for the same problem is a conflict.
	rec = api.do(t, "POST", "/api/v1/targets", map[string]any{
		"type":         "problem",
		"name":         "Watermelon again",
		"problem_link": "https://codeforces.com/problemset/problem/4/A",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for duplicate, got %d: %s", rec.Code, rec.Body.String())
	}

	// Achieving the target returns the updated rating.
	rec = api.do(t, "PUT", fmt.Sprintf("/api/v1/targets/%d/status", created.ID), map[string]string{
		"status": "achieved",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status update returned %d: %s", rec.Code, rec.Body.String())
	}
	var statusResp struct {
		Rating float64 `json:"rating"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &statusResp); err != nil {
		t.Fatalf("Failed to decode status response: %v", err)
	}
	if math.Abs(statusResp.Rating-5.02) > 1e-9 {
		t.Fatalf("Expected rating 5.02, got %v", statusResp.Rating)
	}

	// Sync pushes the achieved target to the cloud store.
	rec = api.do(t, "POST", "/api/v1/sync", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Sync returned %d: %s", rec.Code, rec.Body.String())
	}
	if n := api.store.TargetCount("uid-alice"); n != 1 {
		t.Fatalf("Expected 1 document after sync, got %d", n)
	}

	// Archive it; the active list goes empty.
	rec = api.do(t, "DELETE", fmt.Sprintf("/api/v1/targets/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Archive returned %d: %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, "GET", "/api/v1/targets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("List returned %d", rec.Code)
	}
	var listed []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("Expected empty active list, got %d items", len(listed))
	}

	// The dashboard reflects the solve.
	rec = api.do(t, "GET", "/api/v1/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Dashboard returned %d: %s", rec.Code, rec.Body.String())
	}
	var dash struct {
		Rating      float64 `json:"rating"`
		SolvedCount int     `json:"solved_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &dash); err != nil {
		t.Fatalf("Failed to decode dashboard: %v", err)
	}
	if math.Abs(dash.Rating-5.02) > 1e-9 {
		t.Fatalf("Expected dashboard rating 5.02, got %v", dash.Rating)
	}
	if dash.SolvedCount != 1 {
		t.Fatalf("Expected 1 solve, got %d", dash.SolvedCount)
	}
}

func TestFriendFlow(t *testing.T) {
	api := setupAPI(t)
	api.register(t)

	rec := api.do(t, "POST", "/api/v1/friends", map[string]string{
		"friend_email": "bob@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Add friend returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, "POST", "/api/v1/friends", map[string]string{
		"friend_email": "alice@example.com",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for self-add, got %d", rec.Code)
	}

	rec = api.do(t, "GET", "/api/v1/friends", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("List friends returned %d", rec.Code)
	}
	var friends []struct {
		FriendEmail string `json:"friend_email"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &friends); err != nil {
		t.Fatalf("Failed to decode friends: %v", err)
	}
	if len(friends) != 1 || friends[0].FriendEmail != "bob@example.com" {
		t.Fatalf("Unexpected friend list: %+v", friends)
	}

	rec = api.do(t, "DELETE", "/api/v1/friends/bob@example.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Remove friend returned %d: %s", rec.Code, rec.Body.String())
	}
}
