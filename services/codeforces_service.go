package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CodeforcesService is the read-only client for the contest/problem
// metadata service. It stamps difficulty ratings on new problem targets and
// checks whether tracked contest problems were accepted.
type CodeforcesService struct {
	client  *http.Client
	baseURL string
}

func NewCodeforcesService() *CodeforcesService {
	return &CodeforcesService{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://codeforces.com/api",
	}
}

// NewCodeforcesServiceWithBase is used by tests to point at a stub server.
func NewCodeforcesServiceWithBase(baseURL string) *CodeforcesService {
	return &CodeforcesService{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ContestProblem is one problem of a contest as the metadata API reports it.
type ContestProblem struct {
	ContestID int    `json:"contestId"`
	Index     string `json:"index"`
	Name      string `json:"name"`
	Rating    int    `json:"rating"`
}

type cfEnvelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

func (s *CodeforcesService) call(ctx context.Context, method string, params url.Values, out any) error {
	u := fmt.Sprintf("%s/%s?%s", s.baseURL, method, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("codeforces request failed: %w", err)
	}
	defer resp.Body.Close()

	var env cfEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode codeforces response: %w", err)
	}
	if env.Status != "OK" {
		return fmt.Errorf("codeforces API error: %s", env.Comment)
	}
	return json.Unmarshal(env.Result, out)
}

// FetchContestProblems lists the problems of one contest.
func (s *CodeforcesService) FetchContestProblems(ctx context.Context, contestID int) ([]ContestProblem, error) {
	params := url.Values{}
	params.Set("contestId", strconv.Itoa(contestID))
	params.Set("from", "1")
	params.Set("count", "1")

	var result struct {
		Problems []ContestProblem `json:"problems"`
	}
	if err := s.call(ctx, "contest.standings", params, &result); err != nil {
		return nil, err
	}
	return result.Problems, nil
}

// FetchProblemRating parses a problem URL and returns the difficulty rating
// the metadata service reports for it. Zero means unrated or unknown.
func (s *CodeforcesService) FetchProblemRating(ctx context.Context, problemURL string) (int, error) {
	contestID, index, err := ParseProblemURL(problemURL)
	if err != nil {
		return 0, err
	}

	problems, err := s.FetchContestProblems(ctx, contestID)
	if err != nil {
		return 0, err
	}
	for _, p := range problems {
		if strings.EqualFold(p.Index, index) {
			return p.Rating, nil
		}
	}
	return 0, fmt.Errorf("problem %s not in contest %d", index, contestID)
}

// IsProblemAccepted reports whether the handle has an accepted submission
// for the given contest problem.
func (s *CodeforcesService) IsProblemAccepted(ctx context.Context, handle string, contestID int, index string) (bool, error) {
	params := url.Values{}
	params.Set("handle", handle)
	params.Set("from", "1")
	params.Set("count", "200")

	var submissions []struct {
		Verdict string `json:"verdict"`
		Problem struct {
			ContestID int    `json:"contestId"`
			Index     string `json:"index"`
		} `json:"problem"`
	}
	if err := s.call(ctx, "user.status", params, &submissions); err != nil {
		return false, err
	}

	for _, sub := range submissions {
		if sub.Problem.ContestID == contestID && strings.EqualFold(sub.Problem.Index, index) && sub.Verdict == "OK" {
			return true, nil
		}
	}
	return false, nil
}

// ParseProblemURL extracts contest id and problem index from the two URL
// shapes Codeforces uses:
//
//	https://codeforces.com/problemset/problem/1851/E
//	https://codeforces.com/contest/1851/problem/E
func ParseProblemURL(problemURL string) (int, string, error) {
	u, err := url.Parse(problemURL)
	if err != nil {
		return 0, "", fmt.Errorf("invalid problem url: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	var idPart, indexPart string
	switch {
	case len(parts) >= 4 && parts[0] == "problemset" && parts[1] == "problem":
		idPart, indexPart = parts[2], parts[3]
	case len(parts) >= 4 && parts[0] == "contest" && parts[2] == "problem":
		idPart, indexPart = parts[1], parts[3]
	default:
		return 0, "", fmt.Errorf("unrecognized problem url: %s", problemURL)
	}

	contestID, err := strconv.Atoi(idPart)
	if err != nil {
		return 0, "", fmt.Errorf("invalid contest id in url %s: %w", problemURL, err)
	}
	return contestID, indexPart, nil
}
