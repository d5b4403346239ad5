package raceapi

import "github.com/slipstreamlabs/recordwatch/internal/domain/model"

// Wire shapes of the upstream JSON API. Field names follow the upstream
// contract; mapping to domain models happens here and nowhere else.

type mapSummaryDTO struct {
	MapUID string `json:"map_uid"`
	Name   string `json:"name"`
}

type mapPageDTO struct {
	More       bool            `json:"more"`
	NextCursor string          `json:"next_cursor"`
	Maps       []mapSummaryDTO `json:"maps"`
}

func (p mapPageDTO) toModel() *model.MapPage {
	maps := make([]model.MapSummary, 0, len(p.Maps))
	for _, m := range p.Maps {
		maps = append(maps, model.MapSummary{MapID: m.MapUID, MapName: m.Name})
	}
	return &model.MapPage{Maps: maps, More: p.More, NextCursor: p.NextCursor}
}

type leaderboardEntryDTO struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Position    int    `json:"position"`
	Score       int64  `json:"score"`
	AchievedAt  int64  `json:"achieved_at"`
}

type leaderboardDTO struct {
	Entries []leaderboardEntryDTO `json:"entries"`
}

type leaderboardHeadDTO struct {
	MapUID  string                `json:"map_uid"`
	Entries []leaderboardEntryDTO `json:"entries"`
}

type accountNamesDTO struct {
	Names map[string]string `json:"names"`
}

func toEntries(dtos []leaderboardEntryDTO) []model.LeaderboardEntry {
	if len(dtos) == 0 {
		return nil
	}
	out := make([]model.LeaderboardEntry, 0, len(dtos))
	for _, entry := range dtos {
		out = append(out, model.LeaderboardEntry{
			AccountID:   entry.AccountID,
			DisplayName: entry.DisplayName,
			Position:    entry.Position,
			Score:       entry.Score,
			AchievedAt:  entry.AchievedAt,
		})
	}
	return out
}
