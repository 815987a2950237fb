package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseProblemURL(t *testing.T) {
	cases := []struct {
		url       string
		contestID int
		index     string
		wantErr   bool
	}{
		{"https://codeforces.com/problemset/problem/1851/E", 1851, "E", false},
		{"https://codeforces.com/contest/1851/problem/E", 1851, "E", false},
		{"https://codeforces.com/problemset/problem/4/A?locale=ru", 4, "A", false},
		{"https://codeforces.com/contest/abc/problem/E", 0, "", true},
		{"https://leetcode.com/problems/two-sum/", 0, "", true},
	}

	for _, tc := range cases {
		contestID, index, err := ParseProblemURL(tc.url)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tc.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.url, err)
			continue
		}
		if contestID != tc.contestID || index != tc.index {
			t.Errorf("%s: got (%d, %s), want (%d, %s)", tc.url, contestID, index, tc.contestID, tc.index)
		}
	}
}

func TestFetchProblemRating(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contest.standings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("contestId") != "1851" {
			t.Errorf("unexpected contestId %s", r.URL.Query().Get("contestId"))
		}
		w.Write([]byte(`{
			"status": "OK",
			"result": {
				"problems": [
					{"contestId": 1851, "index": "A", "name": "Pattern Matching", "rating": 800},
					{"contestId": 1851, "index": "E", "name": "Permutation Sorting", "rating": 1900}
				]
			}
		}`))
	}))
	defer server.Close()

	svc := NewCodeforcesServiceWithBase(server.URL)
	rating, err := svc.FetchProblemRating(context.Background(), "https://codeforces.com/contest/1851/problem/E")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if rating != 1900 {
		t.Fatalf("expected rating 1900, got %d", rating)
	}

	_, err = svc.FetchProblemRating(context.Background(), "https://codeforces.com/contest/1851/problem/Z")
	if err == nil {
		t.Fatalf("expected error for unknown index")
	}
}

func TestFetchProblemRatingAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "FAILED", "comment": "contestId: Contest with id 9999 not found"}`))
	}))
	defer server.Close()

	svc := NewCodeforcesServiceWithBase(server.URL)
	_, err := svc.FetchProblemRating(context.Background(), "https://codeforces.com/contest/9999/problem/A")
	if err == nil {
		t.Fatalf("expected error from FAILED envelope")
	}
}

func TestIsProblemAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user.status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("handle") != "tourist" {
			t.Errorf("unexpected handle %s", r.URL.Query().Get("handle"))
		}
		w.Write([]byte(`{
			"status": "OK",
			"result": [
				{"verdict": "WRONG_ANSWER", "problem": {"contestId": 1851, "index": "E"}},
				{"verdict": "OK", "problem": {"contestId": 1851, "index": "E"}},
				{"verdict": "OK", "problem": {"contestId": 4, "index": "A"}}
			]
		}`))
	}))
	defer server.Close()

	svc := NewCodeforcesServiceWithBase(server.URL)

	accepted, err := svc.IsProblemAccepted(context.Background(), "tourist", 1851, "E")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !accepted {
		t.Fatalf("expected accepted")
	}

	accepted, err = svc.IsProblemAccepted(context.Background(), "tourist", 1851, "F")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if accepted {
		t.Fatalf("expected not accepted")
	}
}
