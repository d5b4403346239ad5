// Package core provides the business logic and service layer for the recordwatch job system.
package core

import (
	"context"

	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
)

// ListMapsParams groups parameters for RaceClient.ListMaps.
type ListMapsParams struct {
	Subject  string
	Cursor   string
	PageSize int
}

// LeaderboardTopsParams groups parameters for RaceClient.LeaderboardTops.
type LeaderboardTopsParams struct {
	MapIDs []string
	Depth  int
}

// RaceClient is the authenticated surface of the upstream race service.
// Implementations own token handling; callers own pacing. The upstream
// documents a budget of two requests per second, enforced here only as a
// process-local floor, so every caller pairs its calls with fixed sleeps.
type RaceClient interface {
	// ListMaps returns one page of the subject's authored maps.
	ListMaps(ctx context.Context, params ListMapsParams) (*model.MapPage, error)

	// Leaderboard returns the full leaderboard of a single map.
	Leaderboard(ctx context.Context, mapID string) ([]model.LeaderboardEntry, error)

	// LeaderboardTops returns the sampled heads of up to fifty maps per call.
	LeaderboardTops(ctx context.Context, params LeaderboardTopsParams) ([]model.LeaderboardHead, error)

	// Profiles resolves account IDs to profiles in a single batched call.
	Profiles(ctx context.Context, accountIDs []string) ([]model.Profile, error)
}

// PlayerResolver resolves account IDs to display names. Lookups for distinct
// IDs are batched and coalesced; an ID that cannot be resolved is simply
// absent from the result rather than failing the batch.
type PlayerResolver interface {
	ResolveNames(ctx context.Context, accountIDs []string) (map[string]string, error)
}

// MailMessage is one outbound email.
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers digest emails.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}
