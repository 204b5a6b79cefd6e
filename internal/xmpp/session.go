// Package xmpp speaks the Riot chat protocol directly over TLS: it
// authenticates with the RSO PAS flow, tracks friend presences, and can
// publish a modified presence for the signed-in player.
package xmpp

import (
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	pasURL    = "https://riot-geo.pas.si.riotgames.com/pas/v1/service/chat"
	configURL = "https://clientconfig.rpg.riotgames.com/api/v1/config/player?app=Riot%20Client"
	chatPort  = 5223
)

// ErrNotConnected is returned when an operation needs a live session.
var ErrNotConnected = errors.New("chat session not connected")

// Credentials is what the chat handshake needs from the Riot session.
type Credentials struct {
	AccessToken  string
	Entitlements string
	PUUID        string
}

// LogEntry is one line of the chat wire log shown in the UI.
type LogEntry struct {
	Direction string `json:"direction"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// Status is the session summary for the UI.
type Status struct {
	Connected  bool   `json:"connected"`
	JID        string `json:"jid"`
	Region     string `json:"region"`
	UptimeSecs int64  `json:"uptimeSecs"`
	LogCount   int    `json:"logCount"`
	HasPayload bool   `json:"hasPayload"`
}

// PresenceParams are the fields a published presence may override. Nil
// pointers leave the captured value untouched.
type PresenceParams struct {
	Show                string `json:"show"`
	CompetitiveTier     *int   `json:"competitiveTier"`
	AccountLevel        *int   `json:"accountLevel"`
	LeaderboardPosition *int   `json:"leaderboardPosition"`
	PlayerCardID        string `json:"playerCardId"`
	PlayerTitleID       string `json:"playerTitleId"`
	SessionLoopState    string `json:"sessionLoopState"`
	QueueID             string `json:"queueId"`
	PartySize           *int   `json:"partySize"`
	MaxPartySize        *int   `json:"maxPartySize"`
}

// Session is a single chat connection. All methods are safe for
// concurrent use; reads and writes share one mutex because the protocol
// is strictly request-free after the handshake.
type Session struct {
	log  *zap.Logger
	http *http.Client

	mu          sync.Mutex
	conn        *tls.Conn
	connected   bool
	connectedAt time.Time
	jid         string
	puuid       string
	region      string

	// realPayload is the player's own game presence captured off the
	// wire; published presences are built from it so every field the
	// client normally sends stays present.
	realPayload    map[string]interface{}
	realKeystoneTS int64

	friends map[string]*FriendPresence
	logs    []LogEntry
}

// NewSession creates a disconnected session.
func NewSession(log *zap.Logger) *Session {
	return &Session{
		log:     log,
		http:    &http.Client{Timeout: 15 * time.Second},
		friends: map[string]*FriendPresence{},
	}
}

// Connect runs the full handshake. Any previous connection is dropped
// first and the wire log restarts.
func (s *Session) Connect(creds Credentials) error {
	s.Disconnect()

	s.mu.Lock()
	s.logs = nil
	s.friends = map[string]*FriendPresence{}
	s.mu.Unlock()
	s.addLog("system", "Fetching PAS token...")

	pasToken, err := s.fetchPASToken(creds.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to fetch PAS token: %w", err)
	}
	affinity, err := decodeAffinity(pasToken)
	if err != nil {
		return err
	}
	s.addLog("system", fmt.Sprintf("Affinity: %s, fetching chat config...", affinity))

	host, domain, err := s.fetchChatConfig(creds.AccessToken, creds.Entitlements, affinity)
	if err != nil {
		return err
	}
	s.addLog("system", fmt.Sprintf("Chat host %s:%d, domain %s.pvp.net", host, chatPort, domain))

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", fmt.Sprintf("%s:%d", host, chatPort), &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true,
	})
	if err != nil {
		return fmt.Errorf("failed to reach chat server: %w", err)
	}

	if err := s.handshake(conn, creds, pasToken, domain); err != nil {
		conn.Close()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.connectedAt = time.Now()
	s.puuid = creds.PUUID
	s.region = domain
	s.mu.Unlock()
	s.addLog("system", "Connected and authenticated")
	return nil
}

func (s *Session) handshake(conn *tls.Conn, creds Credentials, pasToken, domain string) error {
	streamOpen := fmt.Sprintf(
		`<?xml version="1.0"?><stream:stream to="%s.pvp.net" version="1.0" xmlns:stream="http://etherx.jabber.org/streams">`,
		domain)

	if err := s.write(conn, streamOpen); err != nil {
		return err
	}
	if _, err := s.readUntil(conn, "</stream:features>", 10*time.Second); err != nil {
		return err
	}

	authXML := fmt.Sprintf(
		`<auth mechanism="X-Riot-RSO-PAS" xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><rso_token>%s</rso_token><pas_token>%s</pas_token></auth>`,
		creds.AccessToken, pasToken)
	if err := s.write(conn, authXML); err != nil {
		return err
	}
	s.addLog("sent", `<auth mechanism="X-Riot-RSO-PAS">[tokens redacted]</auth>`)

	resp, err := s.readChunk(conn, 10*time.Second)
	if err != nil {
		return err
	}
	s.addLog("recv", resp)
	if strings.Contains(resp, "<failure") || strings.Contains(resp, "not-authorized") {
		return fmt.Errorf("chat auth rejected: %s", resp)
	}

	// Stream restarts after SASL
	if err := s.write(conn, streamOpen); err != nil {
		return err
	}
	if _, err := s.readUntil(conn, "</stream:features>", 10*time.Second); err != nil {
		return err
	}

	resource := fmt.Sprintf("RC-%d", time.Now().UnixMilli()%10_000_000_000)
	bind := fmt.Sprintf(
		`<iq id="_xmpp_bind1" type="set"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><resource>%s</resource></bind></iq>`,
		resource)
	if err := s.write(conn, bind); err != nil {
		return err
	}
	resp, err = s.readUntil(conn, "</iq>", 10*time.Second)
	if err != nil {
		return err
	}
	if jid := extractJID(resp); jid != "" {
		s.addLog("system", "Bound JID: "+jid)
		s.mu.Lock()
		s.jid = jid
		s.mu.Unlock()
	}

	session := `<iq id="_xmpp_session1" type="set"><session xmlns="urn:ietf:params:xml:ns:xmpp-session"/></iq>`
	if err := s.write(conn, session); err != nil {
		return err
	}
	if _, err := s.readUntil(conn, "</iq>", 10*time.Second); err != nil {
		return err
	}

	entitlementsXML := fmt.Sprintf(
		`<iq id="xmpp_entitlements_0" type="set"><entitlements xmlns="urn:riotgames:entitlements"><token xmlns="">%s</token></entitlements></iq>`,
		creds.Entitlements)
	if err := s.write(conn, entitlementsXML); err != nil {
		return err
	}
	s.addLog("sent", `<iq id="xmpp_entitlements_0">[entitlements token]</iq>`)
	if resp, _ := s.readChunk(conn, 2*time.Second); resp != "" {
		s.addLog("recv", resp)
	}

	if err := s.write(conn, "<presence/>"); err != nil {
		return err
	}

	// The server answers the initial presence with a burst of roster
	// stanzas; scan it for the player's own payload and friend states.
	var burst strings.Builder
	for i := 0; i < 8; i++ {
		chunk, err := s.readChunk(conn, 1500*time.Millisecond)
		if err != nil || chunk == "" {
			break
		}
		burst.WriteString(chunk)
		s.addLog("recv", chunk)
	}
	s.ingest(burst.String(), creds.PUUID)
	return nil
}

// ingest scans a received burst for the own payload and friend updates.
func (s *Session) ingest(data, puuid string) {
	if data == "" {
		return
	}
	payload, ksTS := extractOwnPayload(data, puuid)

	s.mu.Lock()
	if payload != nil {
		s.realPayload = payload
		s.realKeystoneTS = ksTS
	}
	parsed := updateFriends(data, puuid, s.friends)
	total := len(s.friends)
	s.mu.Unlock()

	if payload != nil {
		s.log.Info("captured own game presence", zap.Int("fields", len(payload)))
	}
	if parsed > 0 {
		s.log.Info("updated friend presences", zap.Int("stanzas", parsed), zap.Int("tracked", total))
	}
}

// Poll drains pending server data. Call it on a short interval; a
// closed connection flips the session to disconnected.
func (s *Session) Poll() error {
	s.mu.Lock()
	conn := s.conn
	puuid := s.puuid
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := s.readChunk(conn, 150*time.Millisecond)
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.addLog("error", "connection closed by server")
			s.Disconnect()
			return ErrNotConnected
		}
		s.addLog("error", err.Error())
		return nil
	}
	if data == "" {
		return nil
	}

	if puuid != "" && strings.Contains(data, puuid) {
		s.addLog("own_presence", data)
	} else {
		s.addLog("recv", data)
	}
	s.ingest(data, puuid)
	return nil
}

// SendPresence publishes a presence built from the captured payload
// with the given overrides applied.
func (s *Session) SendPresence(params PresenceParams) error {
	s.mu.Lock()
	conn := s.conn
	real := s.realPayload
	ksTS := s.realKeystoneTS
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if real == nil {
		return errors.New("no game presence captured yet, reconnect chat while in game")
	}

	payload := clonePayload(real)
	applyOverrides(payload, params)

	raw, err := json.MarshalIndent(payload, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to encode presence payload: %w", err)
	}
	b64 := base64.StdEncoding.EncodeToString(raw)

	show := params.Show
	if show == "" {
		show = "chat"
	}
	ts := time.Now().UnixMilli()
	if ksTS == 0 {
		ksTS = ts - 5000
	}

	xml := fmt.Sprintf(
		`<presence><games>`+
			`<keystone><st>chat</st><s.t>%d</s.t><m/><s.p>keystone</s.p><pty/></keystone>`+
			`<valorant><s.r>PC</s.r><st>%s</st><p>%s</p><s.p>valorant</s.p><s.t>%d</s.t><pty/></valorant>`+
			`</games><show>%s</show><status/></presence>`,
		ksTS, show, b64, ts, show)

	if err := s.write(conn, xml); err != nil {
		return err
	}
	s.addLog("sent", fmt.Sprintf("[presence] show=%s payload=%d bytes", show, len(raw)))
	return nil
}

// SendRaw writes a raw stanza, for the debug console.
func (s *Session) SendRaw(data string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := s.write(conn, data); err != nil {
		return err
	}
	s.addLog("sent", data)
	return nil
}

// Disconnect closes the stream. Safe to call when not connected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()

	if conn != nil {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		conn.Write([]byte("</stream:stream>"))
		conn.Close()
		s.addLog("system", "Disconnected")
	}
}

// Status reports the session summary.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var uptime int64
	if s.connected {
		uptime = int64(time.Since(s.connectedAt).Seconds())
	}
	return Status{
		Connected:  s.connected,
		JID:        s.jid,
		Region:     s.region,
		UptimeSecs: uptime,
		LogCount:   len(s.logs),
		HasPayload: s.realPayload != nil,
	}
}

// Friends returns the tracked friend presences. resolve, when non-nil,
// is asked to name friends whose identity is still unknown.
func (s *Session) Friends(resolve func(puuids []string) map[string][2]string) []FriendPresence {
	s.mu.Lock()
	var unresolved []string
	for puuid, f := range s.friends {
		if f.GameName == "" {
			unresolved = append(unresolved, puuid)
		}
	}
	s.mu.Unlock()

	if len(unresolved) > 0 && resolve != nil {
		names := resolve(unresolved)
		s.mu.Lock()
		for puuid, name := range names {
			if f, ok := s.friends[puuid]; ok {
				f.GameName, f.GameTag = name[0], name[1]
			}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FriendPresence, 0, len(s.friends))
	for _, f := range s.friends {
		out = append(out, *f)
	}
	return out
}

// Logs returns a copy of the wire log.
func (s *Session) Logs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogEntry(nil), s.logs...)
}

func (s *Session) fetchPASToken(accessToken string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, pasURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (s *Session) fetchChatConfig(accessToken, entitlements, affinity string) (host, domain string, err error) {
	req, err := http.NewRequest(http.MethodGet, configURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Riot-Entitlements-JWT", entitlements)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch client config: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var config struct {
		Affinities map[string]string `json:"chat.affinities"`
		Domains    map[string]string `json:"chat.affinity_domains"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		return "", "", fmt.Errorf("failed to parse client config: %w", err)
	}

	host, ok := config.Affinities[affinity]
	if !ok {
		return "", "", fmt.Errorf("no chat host for affinity %q", affinity)
	}
	domain, ok = config.Domains[affinity]
	if !ok {
		return "", "", fmt.Errorf("no chat domain for affinity %q", affinity)
	}
	return host, domain, nil
}

// decodeAffinity reads the affinity claim out of the PAS JWT payload.
func decodeAffinity(pasToken string) (string, error) {
	parts := strings.Split(strings.TrimSpace(pasToken), ".")
	if len(parts) < 2 {
		return "", errors.New("malformed PAS token")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		payload, err = base64.RawStdEncoding.DecodeString(parts[1])
	}
	if err != nil {
		return "", fmt.Errorf("failed to decode PAS payload: %w", err)
	}

	var claims struct {
		Affinity string `json:"affinity"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("failed to parse PAS payload: %w", err)
	}
	if claims.Affinity == "" {
		return "", errors.New("no affinity in PAS token")
	}
	return claims.Affinity, nil
}

func (s *Session) write(conn *tls.Conn, data string) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := conn.Write([]byte(data)); err != nil {
		return fmt.Errorf("chat write failed: %w", err)
	}
	return nil
}

// readChunk reads whatever arrives within the timeout; a quiet wire
// returns an empty string, not an error.
func (s *Session) readChunk(conn *tls.Conn, timeout time.Duration) (string, error) {
	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 16384)
	var result strings.Builder
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			result.Write(buf[:n])
			if n < len(buf) {
				break
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && result.Len() == 0 {
				return "", io.EOF
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}
			if result.Len() == 0 {
				return "", fmt.Errorf("chat read failed: %w", err)
			}
			break
		}
	}
	return result.String(), nil
}

// readUntil accumulates reads until marker shows up.
func (s *Session) readUntil(conn *tls.Conn, marker string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var result strings.Builder
	buf := make([]byte, 16384)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := conn.Read(buf)
		if n > 0 {
			result.Write(buf[:n])
			if strings.Contains(result.String(), marker) {
				s.addLog("recv", result.String())
				return result.String(), nil
			}
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return "", fmt.Errorf("chat read failed during handshake: %w", err)
		}
	}
	return "", fmt.Errorf("timed out waiting for %q", marker)
}

const (
	logCap   = 500
	logDrain = 100
)

func (s *Session) addLog(direction, data string) {
	s.mu.Lock()
	s.logs = append(s.logs, LogEntry{
		Direction: direction,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if len(s.logs) > logCap {
		s.logs = append([]LogEntry(nil), s.logs[logDrain:]...)
	}
	s.mu.Unlock()
}

func clonePayload(in map[string]interface{}) map[string]interface{} {
	raw, err := json.Marshal(in)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

// applyOverrides folds the requested fields into the payload, touching
// both the top-level and the nested presence sections the client keeps
// in sync.
func applyOverrides(payload map[string]interface{}, params PresenceParams) {
	sub := func(key string) map[string]interface{} {
		if m, ok := payload[key].(map[string]interface{}); ok {
			return m
		}
		return nil
	}

	if pd := sub("playerPresenceData"); pd != nil {
		if params.CompetitiveTier != nil {
			pd["competitiveTier"] = *params.CompetitiveTier
		}
		if params.AccountLevel != nil {
			pd["accountLevel"] = *params.AccountLevel
		}
		if params.LeaderboardPosition != nil {
			pd["leaderboardPosition"] = *params.LeaderboardPosition
		}
		if params.PlayerCardID != "" {
			pd["playerCardId"] = params.PlayerCardID
		}
		if params.PlayerTitleID != "" {
			pd["playerTitleId"] = params.PlayerTitleID
		}
	}

	if _, ok := payload["matchPresenceData"].(map[string]interface{}); !ok {
		payload["matchPresenceData"] = map[string]interface{}{}
	}
	md := sub("matchPresenceData")

	if params.SessionLoopState != "" {
		md["sessionLoopState"] = params.SessionLoopState
	}
	if params.QueueID != "" {
		payload["queueId"] = params.QueueID
		md["queueId"] = params.QueueID
		flow := "Matchmaking"
		if params.QueueID == "newmap" {
			flow = "Invalid"
		}
		md["provisioningFlow"] = flow
	}

	ppd := sub("partyPresenceData")
	if params.PartySize != nil {
		payload["partySize"] = *params.PartySize
		if ppd != nil {
			ppd["partySize"] = *params.PartySize
		}
	}
	if params.MaxPartySize != nil {
		payload["maxPartySize"] = *params.MaxPartySize
		if ppd != nil {
			ppd["maxPartySize"] = *params.MaxPartySize
		}
	}
}
