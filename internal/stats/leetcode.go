package stats

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultLeetCodeGraphQLURL is the public LeetCode GraphQL endpoint
const DefaultLeetCodeGraphQLURL = "https://leetcode.com/graphql"

const leetcodeUserQuery = `
query getUserData($username: String!) {
  matchedUser(username: $username) {
    profile { ranking }
    submitStats { acSubmissionNum { difficulty count } }
  }
  userContestRanking(username: $username) { rating globalRanking }
  userContestRankingHistory(username: $username) {
    attended
    rating
    contest { startTime }
  }
}`

type graphQLRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

type leetcodeUserResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Data struct {
		MatchedUser *struct {
			Profile struct {
				Ranking *int `json:"ranking"`
			} `json:"profile"`
			SubmitStats struct {
				AcSubmissionNum []struct {
					Difficulty string `json:"difficulty"`
					Count      int    `json:"count"`
				} `json:"acSubmissionNum"`
			} `json:"submitStats"`
		} `json:"matchedUser"`
		UserContestRanking *struct {
			Rating float64 `json:"rating"`
		} `json:"userContestRanking"`
		UserContestRankingHistory []struct {
			Attended bool    `json:"attended"`
			Rating   float64 `json:"rating"`
			Contest  struct {
				StartTime int64 `json:"startTime"`
			} `json:"contest"`
		} `json:"userContestRankingHistory"`
	} `json:"data"`
}

// LeetCode queries the GraphQL API
type LeetCode struct {
	graphQLURL string
	client     *client
	logger     *zap.Logger
}

// NewLeetCode creates the LeetCode stats fetcher
func NewLeetCode(graphQLURL string, timeout time.Duration, logger *zap.Logger) *LeetCode {
	if graphQLURL == "" {
		graphQLURL = DefaultLeetCodeGraphQLURL
	}
	return &LeetCode{
		graphQLURL: graphQLURL,
		client:     newClient(timeout),
		logger:     logger,
	}
}

func (l *LeetCode) Platform() domain.Platform { return domain.PlatformLeetCode }

// FetchStats issues a single query for profile, rating and history. Users
// who never rated keep a nil rating; only attended contests enter the history.
func (l *LeetCode) FetchStats(ctx context.Context, handle string) domain.PlatformStats {
	handle, failed := requireHandle(l.Platform(), handle)
	if failed != nil {
		return *failed
	}

	var resp leetcodeUserResponse
	err := l.client.postJSON(ctx, l.graphQLURL, graphQLRequest{
		Query:     leetcodeUserQuery,
		Variables: map[string]string{"username": handle},
	}, &resp)
	if err != nil {
		return failure(l.logger, l.Platform(), handle, err)
	}
	if len(resp.Errors) > 0 || resp.Data.MatchedUser == nil {
		return failure(l.logger, l.Platform(), handle, domain.ErrHandleNotFound)
	}

	user := resp.Data.MatchedUser
	stats := domain.PlatformStats{
		Platform: l.Platform(),
		Handle:   handle,
		Success:  true,
		Ranking:  user.Profile.Ranking,
	}
	for _, s := range user.SubmitStats.AcSubmissionNum {
		if s.Difficulty == "All" {
			stats.Solved = intPtr(s.Count)
			break
		}
	}
	if r := resp.Data.UserContestRanking; r != nil {
		stats.Rating = intPtr(int(math.Round(r.Rating)))
	}

	var points []datedPoint
	for _, h := range resp.Data.UserContestRankingHistory {
		if !h.Attended {
			continue
		}
		at := time.Unix(h.Contest.StartTime, 0)
		points = append(points, datedPoint{
			at:    at,
			point: domain.RatingPoint{Rating: int(math.Round(h.Rating)), Date: dateOf(at)},
		})
	}
	stats.History = sortedHistory(points)

	return stats
}
