package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotInMatch signals the player has no pregame or core-game session.
// It is an expected state, not a failure.
var ErrNotInMatch = errors.New("not in a match")

// pregameMatch is the glz pregame match shape.
type pregameMatch struct {
	ID           string `json:"ID"`
	MapID        string `json:"MapID"`
	PregameState string `json:"PregameState"`
	Mode         string `json:"Mode"`
	GamePodID    string `json:"GamePodID"`
	AllyTeam     struct {
		Players []rawPlayer `json:"Players"`
	} `json:"AllyTeam"`
}

// coreMatch is the glz core-game match shape.
type coreMatch struct {
	MatchID         string      `json:"MatchID"`
	MapID           string      `json:"MapID"`
	GameMode        string      `json:"ModeID"`
	GamePodID       string      `json:"GamePodID"`
	Players         []rawPlayer `json:"Players"`
	MatchmakingData struct {
		QueueID string `json:"QueueID"`
	} `json:"MatchmakingData"`
}

type rawPlayer struct {
	Subject        string `json:"Subject"`
	CharacterID    string `json:"CharacterID"`
	TeamID         string `json:"TeamID"`
	PlayerIdentity struct {
		AccountLevel     int  `json:"AccountLevel"`
		Incognito        bool `json:"Incognito"`
		HideAccountLevel bool `json:"HideAccountLevel"`
	} `json:"PlayerIdentity"`
}

func (p rawPlayer) ref(team string) PlayerRef {
	return PlayerRef{
		PUUID:        p.Subject,
		CharacterID:  p.CharacterID,
		Team:         team,
		AccountLevel: p.PlayerIdentity.AccountLevel,
		Incognito:    p.PlayerIdentity.Incognito,
		HideLevel:    p.PlayerIdentity.HideAccountLevel,
	}
}

func parsePregameMatch(data []byte) (*MatchSnapshot, error) {
	var m pregameMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse pregame match: %w", err)
	}

	snap := &MatchSnapshot{
		Phase:        PhasePregame,
		MatchID:      m.ID,
		MapID:        m.MapID,
		PregameState: m.PregameState,
		Mode:         m.Mode,
		ServerPod:    m.GamePodID,
	}
	for _, p := range m.AllyTeam.Players {
		snap.Players = append(snap.Players, p.ref("ally"))
	}
	return snap, nil
}

func parseCoreMatch(data []byte) (*MatchSnapshot, error) {
	var m coreMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse core-game match: %w", err)
	}

	snap := &MatchSnapshot{
		Phase:     PhaseInGame,
		MatchID:   m.MatchID,
		MapID:     m.MapID,
		Mode:      classifyMode(m.GameMode, m.MatchmakingData.QueueID),
		ServerPod: m.GamePodID,
	}
	for _, p := range m.Players {
		snap.Players = append(snap.Players, p.ref(p.TeamID))
	}
	return snap, nil
}

func classifyMode(modeURL, queueID string) string {
	switch {
	case strings.Contains(modeURL, "competitive") || queueID == "competitive":
		return "Competitive"
	case strings.Contains(modeURL, "unrated") || queueID == "unrated":
		return "Unrated"
	case strings.Contains(modeURL, "deathmatch") || queueID == "deathmatch":
		return "Deathmatch"
	case strings.Contains(modeURL, "spikerush") || queueID == "spikerush":
		return "Spike Rush"
	case strings.Contains(modeURL, "swiftplay") || queueID == "swiftplay":
		return "Swiftplay"
	case strings.Contains(modeURL, "ggteam") || queueID == "ggteam":
		return "Escalation"
	case queueID == "premier":
		return "Premier"
	case queueID != "":
		return queueID
	default:
		return "Custom"
	}
}

// CurrentMatch returns the player's active match, checking pregame first
// and then core-game. Returns ErrNotInMatch when neither has a session.
func (c *Client) CurrentMatch(ctx context.Context) (*MatchSnapshot, error) {
	puuid, _, _, _, _, _, err := c.session()
	if err != nil {
		return nil, err
	}

	if data, status, err := c.glzGet(ctx, "/pregame/v1/players/"+puuid); err == nil && status == http.StatusOK {
		var player struct {
			MatchID string `json:"MatchID"`
		}
		if json.Unmarshal(data, &player) == nil && player.MatchID != "" {
			matchData, status, err := c.glzGet(ctx, "/pregame/v1/matches/"+player.MatchID)
			if err != nil {
				return nil, err
			}
			if status == http.StatusOK {
				return parsePregameMatch(matchData)
			}
		}
	}

	if data, status, err := c.glzGet(ctx, "/core-game/v1/players/"+puuid); err == nil && status == http.StatusOK {
		var player struct {
			MatchID string `json:"MatchID"`
		}
		if json.Unmarshal(data, &player) == nil && player.MatchID != "" {
			matchData, status, err := c.glzGet(ctx, "/core-game/v1/matches/"+player.MatchID)
			if err != nil {
				return nil, err
			}
			if status == http.StatusOK {
				return parseCoreMatch(matchData)
			}
		}
	}

	return nil, ErrNotInMatch
}

// SelectAgent hovers an agent in pregame.
func (c *Client) SelectAgent(ctx context.Context, matchID, agentID string) error {
	path := fmt.Sprintf("/pregame/v1/matches/%s/select/%s", matchID, agentID)
	_, status, err := c.glzPost(ctx, path, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("select agent returned %d", status)
	}
	return nil
}

// LockAgent locks the selected agent in pregame.
func (c *Client) LockAgent(ctx context.Context, matchID, agentID string) error {
	path := fmt.Sprintf("/pregame/v1/matches/%s/lock/%s", matchID, agentID)
	_, status, err := c.glzPost(ctx, path, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("lock agent returned %d", status)
	}
	return nil
}

// PregameQuit dodges the current pregame.
func (c *Client) PregameQuit(ctx context.Context, matchID string) error {
	path := fmt.Sprintf("/pregame/v1/matches/%s/quit", matchID)
	_, status, err := c.glzPost(ctx, path, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("pregame quit returned %d", status)
	}
	return nil
}

// CoregameQuit leaves an in-progress match.
func (c *Client) CoregameQuit(ctx context.Context, matchID string) error {
	puuid, _, _, _, _, _, err := c.session()
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/core-game/v1/players/%s/disassociate/%s", puuid, matchID)
	_, status, err := c.glzPost(ctx, path, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("coregame quit returned %d", status)
	}
	return nil
}

// ResolveNames resolves puuids to display names via the local
// name-service. Cheap and not rate limited.
func (c *Client) ResolveNames(ctx context.Context, puuids []string) ([]NameEntry, error) {
	if len(puuids) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(puuids)
	if err != nil {
		return nil, err
	}

	data, status, err := c.pdPut(ctx, "/name-service/v2/players", string(body))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("name service returned %d", status)
	}

	var raw []struct {
		Subject  string `json:"Subject"`
		GameName string `json:"GameName"`
		TagLine  string `json:"TagLine"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse names: %w", err)
	}

	entries := make([]NameEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, NameEntry{
			PUUID:    r.Subject,
			GameName: r.GameName,
			TagLine:  r.TagLine,
		})
	}
	return entries, nil
}

// PlayerMMR fetches a player's latest competitive standing from the local
// pd endpoint. A zero Tier and RankInTier together mean no data.
func (c *Client) PlayerMMR(ctx context.Context, puuid string) (MMR, error) {
	data, status, err := c.pdGet(ctx, "/mmr/v1/players/"+puuid)
	if err != nil {
		return MMR{}, err
	}
	if status != http.StatusOK {
		return MMR{}, fmt.Errorf("mmr endpoint returned %d", status)
	}

	var raw struct {
		LatestCompetitiveUpdate struct {
			TierAfterUpdate         int `json:"TierAfterUpdate"`
			RankedRatingAfterUpdate int `json:"RankedRatingAfterUpdate"`
		} `json:"LatestCompetitiveUpdate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return MMR{}, fmt.Errorf("parse mmr: %w", err)
	}

	return MMR{
		Tier:       raw.LatestCompetitiveUpdate.TierAfterUpdate,
		RankInTier: raw.LatestCompetitiveUpdate.RankedRatingAfterUpdate,
	}, nil
}
