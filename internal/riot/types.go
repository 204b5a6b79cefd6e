package riot

// Phase classifies the player's current match state.
type Phase string

const (
	PhaseNoMatch Phase = "none"
	PhasePregame Phase = "pregame"
	PhaseInGame  Phase = "ingame"
)

// PlayerInfo identifies the locally signed-in player.
type PlayerInfo struct {
	PUUID         string `json:"puuid"`
	GameName      string `json:"gameName"`
	TagLine       string `json:"tagLine"`
	Region        string `json:"region"`
	Shard         string `json:"shard"`
	ClientVersion string `json:"clientVersion"`
}

// PlayerRef is one player's slot in a match snapshot, before resolution.
type PlayerRef struct {
	PUUID        string `json:"puuid"`
	CharacterID  string `json:"characterId"`
	Team         string `json:"team"`
	AccountLevel int    `json:"accountLevel"`
	Incognito    bool   `json:"incognito"`
	HideLevel    bool   `json:"hideLevel"`
}

// MatchSnapshot is the result of one current-match poll.
type MatchSnapshot struct {
	Phase        Phase       `json:"phase"`
	MatchID      string      `json:"matchId"`
	MapID        string      `json:"mapId"`
	PregameState string      `json:"pregameState"`
	Mode         string      `json:"mode"`
	ServerPod    string      `json:"serverPod"`
	Players      []PlayerRef `json:"players"`
}

// NameEntry is one result from the local name-service bulk endpoint.
type NameEntry struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"name"`
	TagLine  string `json:"tag"`
}

// MMR is the local MMR endpoint's answer. Tier 0 / rank 0 together mean
// the endpoint has no data for that player, not that they are unranked tier 0.
type MMR struct {
	Tier       int `json:"tier"`
	RankInTier int `json:"rankInTier"`
}

// HasData reports whether the endpoint returned real standings.
func (m MMR) HasData() bool {
	return m.Tier != 0 || m.RankInTier != 0
}

// PartyMember is one member of the local player's party.
type PartyMember struct {
	PUUID        string `json:"puuid"`
	GameName     string `json:"name"`
	TagLine      string `json:"tag"`
	IsOwner      bool   `json:"isOwner"`
	IsReady      bool   `json:"isReady"`
	AccountLevel int    `json:"accountLevel"`
	CardID       string `json:"cardId"`
}

// Party is the local player's party state.
type Party struct {
	ID            string        `json:"id"`
	State         string        `json:"state"`
	Accessibility string        `json:"accessibility"`
	QueueID       string        `json:"queueId"`
	Members       []PartyMember `json:"members"`
	InviteCode    string        `json:"inviteCode"`
}

// HomeStats summarizes recent competitive history for the home screen.
type HomeStats struct {
	Tier         int     `json:"tier"`
	RankedRating int     `json:"rankedRating"`
	LastDelta    int     `json:"lastDelta"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"winRate"`
	GamesCounted int     `json:"gamesCounted"`
}
