package xmpp

import (
	"encoding/base64"
	"fmt"
	"testing"
)

func presenceStanza(puuid, show string, payload string) string {
	body := ""
	if show != "" {
		body += "<show>" + show + "</show>"
	}
	if payload != "" {
		b64 := base64.StdEncoding.EncodeToString([]byte(payload))
		body += "<games><keystone><st>chat</st><s.t>1700000000000</s.t></keystone>" +
			"<valorant><p>" + b64 + "</p></valorant></games>"
	}
	return fmt.Sprintf(`<presence from="%s@na1.pvp.net/RC-123" to="me@na1.pvp.net">%s</presence>`, puuid, body)
}

func TestExtractJID(t *testing.T) {
	xml := `<iq id="_xmpp_bind1" type="result"><bind><jid>abc-123@na1.pvp.net/RC-5</jid></bind></iq>`
	if got := extractJID(xml); got != "abc-123@na1.pvp.net/RC-5" {
		t.Fatalf("extractJID = %q", got)
	}
	if got := extractJID("<iq/>"); got != "" {
		t.Fatalf("expected empty jid, got %q", got)
	}
}

func TestExtractShow(t *testing.T) {
	cases := []struct {
		stanza string
		want   string
	}{
		{presenceStanza("p1", "away", ""), "away"},
		{presenceStanza("p1", "", ""), "online"},
		{`<presence from="p1@na1.pvp.net" type="unavailable"/></presence>`, "offline"},
	}
	for _, tc := range cases {
		if got := extractShow(tc.stanza); got != tc.want {
			t.Fatalf("extractShow(%q) = %q, want %q", tc.stanza, got, tc.want)
		}
	}
}

func TestUpdateFriendsSkipsOwnPresence(t *testing.T) {
	data := presenceStanza("me", "chat", `{"queueId":"competitive"}`) +
		presenceStanza("friend1", "away", `{"queueId":"unrated"}`) +
		presenceStanza("friend2", "", "")

	friends := map[string]*FriendPresence{}
	parsed := updateFriends(data, "me", friends)

	if parsed != 2 {
		t.Fatalf("parsed %d stanzas, want 2", parsed)
	}
	if _, ok := friends["me"]; ok {
		t.Fatalf("own presence must not be tracked as a friend")
	}
	if friends["friend1"].Show != "away" {
		t.Fatalf("friend1 show = %q", friends["friend1"].Show)
	}
	if friends["friend1"].ValorantData["queueId"] != "unrated" {
		t.Fatalf("friend1 payload = %+v", friends["friend1"].ValorantData)
	}
	if friends["friend2"].Show != "online" || friends["friend2"].ValorantData != nil {
		t.Fatalf("friend2 = %+v", friends["friend2"])
	}
}

func TestUpdateFriendsKeepsPayloadAcrossBareUpdates(t *testing.T) {
	friends := map[string]*FriendPresence{}
	updateFriends(presenceStanza("f1", "chat", `{"partySize":3}`), "me", friends)
	updateFriends(presenceStanza("f1", "away", ""), "me", friends)

	f := friends["f1"]
	if f.Show != "away" {
		t.Fatalf("show not updated: %q", f.Show)
	}
	if f.ValorantData == nil {
		t.Fatalf("a payload-free update must not erase the last known payload")
	}
}

func TestExtractOwnPayload(t *testing.T) {
	data := presenceStanza("friend1", "chat", `{"queueId":"swiftplay"}`) +
		presenceStanza("me", "chat", `{"queueId":"competitive","partySize":2}`)

	payload, ksTS := extractOwnPayload(data, "me")
	if payload == nil || payload["queueId"] != "competitive" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if ksTS != 1700000000000 {
		t.Fatalf("keystone ts = %d", ksTS)
	}

	if p, _ := extractOwnPayload(data, ""); p != nil {
		t.Fatalf("empty puuid must never match")
	}
	if p, _ := extractOwnPayload(data, "absent"); p != nil {
		t.Fatalf("unknown puuid must not match")
	}
}

func TestDecodeAffinity(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"affinity":"na1"}`))
	token := "header." + payload + ".sig"
	got, err := decodeAffinity(token)
	if err != nil {
		t.Fatalf("decodeAffinity failed: %v", err)
	}
	if got != "na1" {
		t.Fatalf("affinity = %q, want na1", got)
	}

	if _, err := decodeAffinity("nodots"); err == nil {
		t.Fatalf("malformed token should fail")
	}
}

func TestApplyOverrides(t *testing.T) {
	tier := 27
	size := 5
	payload := map[string]interface{}{
		"playerPresenceData": map[string]interface{}{"competitiveTier": float64(3)},
		"partyPresenceData":  map[string]interface{}{"partySize": float64(1)},
	}
	applyOverrides(payload, PresenceParams{
		CompetitiveTier:  &tier,
		QueueID:          "competitive",
		SessionLoopState: "INGAME",
		PartySize:        &size,
	})

	pd := payload["playerPresenceData"].(map[string]interface{})
	if pd["competitiveTier"] != 27 {
		t.Fatalf("tier not overridden: %+v", pd)
	}
	md := payload["matchPresenceData"].(map[string]interface{})
	if md["queueId"] != "competitive" || md["provisioningFlow"] != "Matchmaking" || md["sessionLoopState"] != "INGAME" {
		t.Fatalf("match presence not updated: %+v", md)
	}
	ppd := payload["partyPresenceData"].(map[string]interface{})
	if ppd["partySize"] != 5 || payload["partySize"] != 5 {
		t.Fatalf("party size not mirrored: %+v", payload)
	}
}
