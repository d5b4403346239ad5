package model

// MapPage is one page of a subject's authored map listing. More signals that
// another page exists; NextCursor is the opaque token to fetch it with.
type MapPage struct {
	Maps       []MapSummary `json:"maps"`
	More       bool         `json:"more"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// Profile pairs an account ID with its current public display name.
type Profile struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}

// LeaderboardHead is the sampled top of one map's leaderboard, as returned by
// the batched tops endpoint.
type LeaderboardHead struct {
	MapID   string             `json:"map_id"`
	Entries []LeaderboardEntry `json:"entries"`
}
