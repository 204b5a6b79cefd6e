package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// partyID resolves the local player's current party id.
func (c *Client) partyID(ctx context.Context) (string, error) {
	puuid, _, _, _, _, _, err := c.session()
	if err != nil {
		return "", err
	}

	data, status, err := c.glzGet(ctx, "/parties/v1/players/"+puuid)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("party player lookup returned %d", status)
	}

	var player struct {
		CurrentPartyID string `json:"CurrentPartyID"`
	}
	if err := json.Unmarshal(data, &player); err != nil {
		return "", fmt.Errorf("parse party player: %w", err)
	}
	if player.CurrentPartyID == "" {
		return "", fmt.Errorf("player has no party")
	}
	return player.CurrentPartyID, nil
}

// GetParty returns the local player's party with member names resolved.
func (c *Client) GetParty(ctx context.Context) (*Party, error) {
	partyID, err := c.partyID(ctx)
	if err != nil {
		return nil, err
	}

	data, status, err := c.glzGet(ctx, "/parties/v1/parties/"+partyID)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("party lookup returned %d", status)
	}

	var raw struct {
		ID            string `json:"ID"`
		State         string `json:"State"`
		Accessibility string `json:"Accessibility"`
		InviteCode    string `json:"InviteCode"`
		MatchmakingData struct {
			QueueID string `json:"QueueID"`
		} `json:"MatchmakingData"`
		Members []struct {
			Subject        string `json:"Subject"`
			IsOwner        bool   `json:"IsOwner"`
			IsReady        bool   `json:"IsReady"`
			PlayerIdentity struct {
				AccountLevel int    `json:"AccountLevel"`
				PlayerCardID string `json:"PlayerCardID"`
			} `json:"PlayerIdentity"`
		} `json:"Members"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse party: %w", err)
	}

	party := &Party{
		ID:            raw.ID,
		State:         raw.State,
		Accessibility: raw.Accessibility,
		QueueID:       raw.MatchmakingData.QueueID,
		InviteCode:    raw.InviteCode,
	}

	puuids := make([]string, 0, len(raw.Members))
	for _, m := range raw.Members {
		puuids = append(puuids, m.Subject)
	}
	names := map[string]NameEntry{}
	if entries, err := c.ResolveNames(ctx, puuids); err == nil {
		for _, e := range entries {
			names[e.PUUID] = e
		}
	}

	for _, m := range raw.Members {
		member := PartyMember{
			PUUID:        m.Subject,
			IsOwner:      m.IsOwner,
			IsReady:      m.IsReady,
			AccountLevel: m.PlayerIdentity.AccountLevel,
			CardID:       m.PlayerIdentity.PlayerCardID,
		}
		if n, ok := names[m.Subject]; ok {
			member.GameName = n.GameName
			member.TagLine = n.TagLine
		}
		party.Members = append(party.Members, member)
	}

	return party, nil
}

// SetPartyAccessibility toggles the party between OPEN and CLOSED.
func (c *Client) SetPartyAccessibility(ctx context.Context, open bool) error {
	partyID, err := c.partyID(ctx)
	if err != nil {
		return err
	}

	accessibility := "CLOSED"
	if open {
		accessibility = "OPEN"
	}
	body := fmt.Sprintf(`{"accessibility":%q}`, accessibility)

	_, status, err := c.glzPost(ctx, "/parties/v1/parties/"+partyID+"/accessibility", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("set accessibility returned %d", status)
	}
	return nil
}

// GeneratePartyCode creates an invite code for the current party.
func (c *Client) GeneratePartyCode(ctx context.Context) (string, error) {
	partyID, err := c.partyID(ctx)
	if err != nil {
		return "", err
	}

	data, status, err := c.glzPost(ctx, "/parties/v1/parties/"+partyID+"/invitecode", "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("generate code returned %d", status)
	}

	var resp struct {
		InviteCode string `json:"InviteCode"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse invite code: %w", err)
	}
	return resp.InviteCode, nil
}

// DisablePartyCode revokes the current party's invite code.
func (c *Client) DisablePartyCode(ctx context.Context) error {
	partyID, err := c.partyID(ctx)
	if err != nil {
		return err
	}

	_, status, err := c.glzDelete(ctx, "/parties/v1/parties/"+partyID+"/invitecode")
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("disable code returned %d", status)
	}
	return nil
}

// KickFromParty removes a member from the party.
func (c *Client) KickFromParty(ctx context.Context, targetPUUID string) error {
	partyID, err := c.partyID(ctx)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/parties/v1/parties/%s/members/%s", partyID, targetPUUID)
	_, status, err := c.glzDelete(ctx, path)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("kick returned %d", status)
	}
	return nil
}

// JoinPartyByCode joins a party using an invite code.
func (c *Client) JoinPartyByCode(ctx context.Context, code string) error {
	_, status, err := c.glzPost(ctx, "/parties/v1/players/joinbycode/"+code, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("join by code returned %d", status)
	}
	return nil
}

// EnterQueue starts matchmaking for the current party.
func (c *Client) EnterQueue(ctx context.Context) error {
	partyID, err := c.partyID(ctx)
	if err != nil {
		return err
	}

	_, status, err := c.glzPost(ctx, "/parties/v1/parties/"+partyID+"/matchmaking/join", "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("enter queue returned %d", status)
	}
	return nil
}

// LeaveQueue stops matchmaking for the current party.
func (c *Client) LeaveQueue(ctx context.Context) error {
	partyID, err := c.partyID(ctx)
	if err != nil {
		return err
	}

	_, status, err := c.glzPost(ctx, "/parties/v1/parties/"+partyID+"/matchmaking/leave", "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("leave queue returned %d", status)
	}
	return nil
}
