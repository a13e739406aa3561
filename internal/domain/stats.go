package domain

// RatingPoint is one entry of a rating history, date formatted YYYY-MM-DD
type RatingPoint struct {
	Rating int    `json:"rating"`
	Date   string `json:"date"`
}

// PlatformStats is a per-user snapshot fetched on demand from one platform.
// Failures are reported through Success and Error rather than a Go error.
type PlatformStats struct {
	Platform  Platform      `json:"platform"`
	Handle    string        `json:"handle"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Rating    *int          `json:"rating,omitempty"`
	MaxRating *int          `json:"maxRating,omitempty"`
	Rank      string        `json:"rank,omitempty"`
	Stars     string        `json:"stars,omitempty"`
	Ranking   *int          `json:"ranking,omitempty"`
	Solved    *int          `json:"solved,omitempty"`
	History   []RatingPoint `json:"history"`
}

// FailedStats builds the failure record for a platform and handle
func FailedStats(platform Platform, handle, message string) PlatformStats {
	return PlatformStats{
		Platform: platform,
		Handle:   handle,
		Success:  false,
		Error:    message,
		History:  []RatingPoint{},
	}
}
