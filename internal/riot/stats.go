package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const homeStatsGames = 15

// GetHomeStats aggregates the local player's recent competitive results
// for the home screen.
func (c *Client) GetHomeStats(ctx context.Context) (*HomeStats, error) {
	puuid, _, _, _, _, _, err := c.session()
	if err != nil {
		return nil, err
	}

	mmrData, status, err := c.pdGet(ctx, "/mmr/v1/players/"+puuid)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("mmr endpoint returned %d", status)
	}

	var mmr struct {
		LatestCompetitiveUpdate struct {
			TierAfterUpdate          int `json:"TierAfterUpdate"`
			RankedRatingAfterUpdate  int `json:"RankedRatingAfterUpdate"`
			RankedRatingEarned       int `json:"RankedRatingEarned"`
		} `json:"LatestCompetitiveUpdate"`
	}
	if err := json.Unmarshal(mmrData, &mmr); err != nil {
		return nil, fmt.Errorf("parse mmr: %w", err)
	}

	stats := &HomeStats{
		Tier:         mmr.LatestCompetitiveUpdate.TierAfterUpdate,
		RankedRating: mmr.LatestCompetitiveUpdate.RankedRatingAfterUpdate,
		LastDelta:    mmr.LatestCompetitiveUpdate.RankedRatingEarned,
	}

	historyPath := fmt.Sprintf("/match-history/v1/history/%s?startIndex=0&endIndex=%d&queue=competitive", puuid, homeStatsGames)
	historyData, status, err := c.pdGet(ctx, historyPath)
	if err != nil || status != http.StatusOK {
		// Rank info alone is still useful
		return stats, nil
	}

	var history struct {
		History []struct {
			MatchID string `json:"MatchID"`
		} `json:"History"`
	}
	if err := json.Unmarshal(historyData, &history); err != nil {
		return stats, nil
	}

	for _, h := range history.History {
		detailData, status, err := c.pdGet(ctx, "/match-details/v1/matches/"+h.MatchID)
		if err != nil || status != http.StatusOK {
			continue
		}

		won, ok := matchWon(detailData, puuid)
		if !ok {
			continue
		}
		stats.GamesCounted++
		if won {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}

	if stats.GamesCounted > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.GamesCounted) * 100
	}
	return stats, nil
}

// matchWon determines whether puuid's team won the given match detail.
func matchWon(detail []byte, puuid string) (won bool, ok bool) {
	var d struct {
		Players []struct {
			Subject string `json:"subject"`
			TeamID  string `json:"teamId"`
		} `json:"players"`
		Teams []struct {
			TeamID string `json:"teamId"`
			Won    bool   `json:"won"`
		} `json:"teams"`
	}
	if err := json.Unmarshal(detail, &d); err != nil {
		return false, false
	}

	var teamID string
	for _, p := range d.Players {
		if p.Subject == puuid {
			teamID = p.TeamID
			break
		}
	}
	if teamID == "" {
		return false, false
	}

	for _, t := range d.Teams {
		if t.TeamID == teamID {
			return t.Won, true
		}
	}
	return false, false
}
