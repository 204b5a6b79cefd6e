package riot

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// Riot edge APIs reject requests without a platform header.
	clientPlatform = "ew0KCSJwbGF0Zm9ybVR5cGUiOiAiUEMiLA0KCSJwbGF0Zm9ybU9TIjogIldpbmRvd3MiLA0KCSJwbGF0Zm9ybU9TVmVyc2lvbiI6ICIxMC4wLjE5MDQyLjEuMjU2LjY0Yml0IiwNCgkicGxhdGZvcm1DaGlwc2V0IjogIlVua25vd24iDQp9"

	userinfoURL  = "https://auth.riotgames.com/userinfo"
	versionURL   = "https://valorant-api.com/v1/version"
	tokenMaxAge  = 600 * time.Second
	validateEach = 60 * time.Second
)

var glzHostPattern = regexp.MustCompile(`https://glz-(.+?)-1\.(.+?)\.a\.pvp\.net`)

// Client talks to the local Riot Client and, once connected, to the
// glz/pd game edges using tokens obtained locally.
type Client struct {
	local *http.Client
	edge  *http.Client
	log   *zap.Logger

	// test seams; empty in production
	glzOverride string
	pdOverride  string

	mu             sync.Mutex
	creds          *Credentials
	localBase      string
	localAuth      string
	accessToken    string
	entitlements   string
	player         *PlayerInfo
	tokenFetchedAt time.Time
	lastValidated  time.Time
}

// NewClient creates a disconnected client.
func NewClient(log *zap.Logger) *Client {
	return &Client{
		local: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, // local client uses a self-signed cert
				},
			},
			Timeout: 5 * time.Second,
		},
		edge: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// IsGameRunning reports whether VALORANT appears to be up: the Riot
// Client lockfile exists and the local API answers.
func (c *Client) IsGameRunning(ctx context.Context) bool {
	path, err := FindLockfile()
	if err != nil {
		return false
	}
	creds, err := ParseLockfile(path)
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("https://127.0.0.1:%s/entitlements/v1/token", creds.Port), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", basicAuth(creds.Password))

	resp, err := c.local.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Connect establishes a session: parses the lockfile, fetches tokens from
// the local client, discovers region/shard from the game log, and looks
// up the signed-in player.
func (c *Client) Connect(ctx context.Context) (*PlayerInfo, error) {
	lockfilePath, err := FindLockfile()
	if err != nil {
		return nil, err
	}

	creds, err := ParseLockfile(lockfilePath)
	if err != nil {
		return nil, err
	}

	localBase := fmt.Sprintf("https://127.0.0.1:%s", creds.Port)
	localAuth := basicAuth(creds.Password)

	access, entitlements, puuid, err := c.fetchTokens(ctx, localBase, localAuth)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entitlements: %w", err)
	}

	region, shard, err := parseRegionShard()
	if err != nil {
		return nil, err
	}

	version, err := c.fetchClientVersion(ctx)
	if err != nil {
		c.log.Warn("client version lookup failed", zap.Error(err))
	}

	gameName, tagLine := c.fetchAccountName(ctx, access)

	player := &PlayerInfo{
		PUUID:         puuid,
		GameName:      gameName,
		TagLine:       tagLine,
		Region:        region,
		Shard:         shard,
		ClientVersion: version,
	}

	c.mu.Lock()
	c.creds = creds
	c.localBase = localBase
	c.localAuth = localAuth
	c.accessToken = access
	c.entitlements = entitlements
	c.player = player
	c.tokenFetchedAt = time.Now()
	c.lastValidated = time.Now()
	c.mu.Unlock()

	c.log.Info("connected to riot client",
		zap.String("player", gameName+"#"+tagLine),
		zap.String("region", region),
		zap.String("shard", shard))

	return player, nil
}

// HealthCheck verifies the session is still usable, refreshing tokens
// when they age out. A (nil, nil) return signals a lost session.
func (c *Client) HealthCheck(ctx context.Context) (*PlayerInfo, error) {
	c.mu.Lock()
	connected := c.player != nil
	needsRefresh := time.Since(c.tokenFetchedAt) > tokenMaxAge
	needsValidate := time.Since(c.lastValidated) > validateEach
	c.mu.Unlock()

	if !connected {
		return nil, nil
	}

	if !c.IsGameRunning(ctx) {
		c.log.Warn("riot client no longer running, disconnecting")
		c.Disconnect()
		return nil, nil
	}

	if needsRefresh {
		c.log.Info("access token aged out, refreshing")
		if err := c.refreshTokens(ctx); err != nil {
			c.log.Error("token refresh failed", zap.Error(err))
			c.Disconnect()
			return nil, nil
		}
	}

	if needsValidate {
		c.mu.Lock()
		c.lastValidated = time.Now()
		c.mu.Unlock()
		if !c.validateToken(ctx) {
			if err := c.refreshTokens(ctx); err != nil || !c.validateToken(ctx) {
				c.log.Error("token invalid after refresh, disconnecting", zap.Error(err))
				c.Disconnect()
				return nil, nil
			}
		}
	}

	return c.Player(), nil
}

// Player returns the cached signed-in player, or nil when disconnected.
func (c *Client) Player() *PlayerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return nil
	}
	p := *c.player
	return &p
}

// IsConnected reports whether a session is established.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player != nil
}

// TokenAge returns the age of the current access token.
func (c *Client) TokenAge() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenFetchedAt.IsZero() {
		return 0
	}
	return time.Since(c.tokenFetchedAt)
}

// GetCredentials returns the lockfile credentials of the current session.
func (c *Client) GetCredentials() *Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

// Tokens returns the current access and entitlements tokens along with
// the player puuid, for callers that authenticate elsewhere.
func (c *Client) Tokens() (access, entitlements, puuid string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return "", "", "", ErrClientNotRunning
	}
	return c.accessToken, c.entitlements, c.player.PUUID, nil
}

// Disconnect drops all session state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = nil
	c.accessToken = ""
	c.entitlements = ""
	c.player = nil
}

func (c *Client) fetchTokens(ctx context.Context, localBase, localAuth string) (access, entitlements, puuid string, err error) {
	req, err := http.NewRequestWithContext(ctx, "GET", localBase+"/entitlements/v1/token", nil)
	if err != nil {
		return "", "", "", err
	}
	req.Header.Set("Authorization", localAuth)

	resp, err := c.local.Do(req)
	if err != nil {
		return "", "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", "", fmt.Errorf("entitlements endpoint returned %d", resp.StatusCode)
	}

	var tokens struct {
		AccessToken string `json:"accessToken"`
		Token       string `json:"token"`
		Subject     string `json:"subject"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", "", "", err
	}
	if tokens.AccessToken == "" || tokens.Token == "" {
		return "", "", "", fmt.Errorf("entitlements response missing tokens")
	}

	return tokens.AccessToken, tokens.Token, tokens.Subject, nil
}

func (c *Client) refreshTokens(ctx context.Context) error {
	c.mu.Lock()
	localBase, localAuth := c.localBase, c.localAuth
	c.mu.Unlock()

	access, entitlements, _, err := c.fetchTokens(ctx, localBase, localAuth)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = access
	c.entitlements = entitlements
	c.tokenFetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// validateToken makes a cheap pd call to confirm the edge still accepts
// the current tokens.
func (c *Client) validateToken(ctx context.Context) bool {
	player := c.Player()
	if player == nil {
		return false
	}
	path := fmt.Sprintf("/personalization/v2/players/%s/playerloadout", player.PUUID)
	_, status, err := c.pdGet(ctx, path)
	return err == nil && status == http.StatusOK
}

func (c *Client) fetchClientVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", versionURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.edge.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Data struct {
			RiotClientVersion string `json:"riotClientVersion"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Data.RiotClientVersion, nil
}

func (c *Client) fetchAccountName(ctx context.Context, accessToken string) (string, string) {
	req, err := http.NewRequestWithContext(ctx, "GET", userinfoURL, nil)
	if err != nil {
		return "", ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.edge.Do(req)
	if err != nil {
		c.log.Warn("userinfo lookup failed", zap.Error(err))
		return "", ""
	}
	defer resp.Body.Close()

	var info struct {
		Acct struct {
			GameName string `json:"game_name"`
			TagLine  string `json:"tag_line"`
		} `json:"acct"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", ""
	}
	return info.Acct.GameName, info.Acct.TagLine
}

// parseRegionShard extracts the player's region and shard from the glz
// hostnames VALORANT writes to its own log.
func parseRegionShard() (string, string, error) {
	logPath := shooterGameLogPath()
	if logPath == "" {
		return "", "", fmt.Errorf("LOCALAPPDATA not set")
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read ShooterGame.log: %w", err)
	}

	matches := glzHostPattern.FindAllStringSubmatch(string(content), -1)
	if len(matches) == 0 {
		return "", "", fmt.Errorf("could not find region/shard in ShooterGame.log")
	}

	last := matches[len(matches)-1]
	return last[1], last[2], nil
}

// session snapshots the fields every edge request needs.
func (c *Client) session() (puuid, region, shard, access, entitlements, version string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return "", "", "", "", "", "", ErrClientNotRunning
	}
	return c.player.PUUID, c.player.Region, c.player.Shard,
		c.accessToken, c.entitlements, c.player.ClientVersion, nil
}

func (c *Client) glzURL(path string) (string, error) {
	if c.glzOverride != "" {
		return c.glzOverride + path, nil
	}
	_, region, shard, _, _, _, err := c.session()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://glz-%s-1.%s.a.pvp.net%s", region, shard, path), nil
}

func (c *Client) pdURL(path string) (string, error) {
	if c.pdOverride != "" {
		return c.pdOverride + path, nil
	}
	_, _, shard, _, _, _, err := c.session()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://pd.%s.a.pvp.net%s", shard, path), nil
}

func (c *Client) edgeDo(ctx context.Context, method, url string, body io.Reader) ([]byte, int, error) {
	_, _, _, access, entitlements, version, err := c.session()
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("X-Riot-Entitlements-JWT", entitlements)
	req.Header.Set("X-Riot-ClientVersion", version)
	req.Header.Set("X-Riot-ClientPlatform", clientPlatform)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.edge.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

func (c *Client) glzGet(ctx context.Context, path string) ([]byte, int, error) {
	url, err := c.glzURL(path)
	if err != nil {
		return nil, 0, err
	}
	return c.edgeDo(ctx, "GET", url, nil)
}

func (c *Client) glzPost(ctx context.Context, path string, body string) ([]byte, int, error) {
	url, err := c.glzURL(path)
	if err != nil {
		return nil, 0, err
	}
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return c.edgeDo(ctx, "POST", url, reader)
}

func (c *Client) glzDelete(ctx context.Context, path string) ([]byte, int, error) {
	url, err := c.glzURL(path)
	if err != nil {
		return nil, 0, err
	}
	return c.edgeDo(ctx, "DELETE", url, nil)
}

func (c *Client) pdGet(ctx context.Context, path string) ([]byte, int, error) {
	url, err := c.pdURL(path)
	if err != nil {
		return nil, 0, err
	}
	return c.edgeDo(ctx, "GET", url, nil)
}

func (c *Client) pdPut(ctx context.Context, path string, body string) ([]byte, int, error) {
	url, err := c.pdURL(path)
	if err != nil {
		return nil, 0, err
	}
	return c.edgeDo(ctx, "PUT", url, strings.NewReader(body))
}

func basicAuth(password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("riot:"+password))
}
