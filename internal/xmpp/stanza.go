package xmpp

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FriendPresence is one tracked friend's latest chat state.
type FriendPresence struct {
	PUUID        string                 `json:"puuid"`
	GameName     string                 `json:"gameName"`
	GameTag      string                 `json:"gameTag"`
	Show         string                 `json:"show"`
	ValorantData map[string]interface{} `json:"valorantData,omitempty"`
	LastUpdated  int64                  `json:"lastUpdated"`
}

// extractJID pulls the bound JID out of a bind result.
func extractJID(xml string) string {
	start := strings.Index(xml, "<jid>")
	if start < 0 {
		return ""
	}
	rest := xml[start+len("<jid>"):]
	end := strings.Index(rest, "</jid>")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// extractPresencePUUID reads the sender puuid from a presence stanza's
// from attribute (puuid@domain form).
func extractPresencePUUID(stanza string) string {
	pos := strings.Index(stanza, `from="`)
	if pos < 0 {
		return ""
	}
	after := stanza[pos+len(`from="`):]
	at := strings.Index(after, "@")
	if at < 0 {
		return ""
	}
	return after[:at]
}

// extractShow maps a stanza to its availability state.
func extractShow(stanza string) string {
	if strings.Contains(stanza, `type="unavailable"`) {
		return "offline"
	}
	if start := strings.Index(stanza, "<show>"); start >= 0 {
		rest := stanza[start+len("<show>"):]
		if end := strings.Index(rest, "</show>"); end >= 0 {
			return rest[:end]
		}
	}
	return "online"
}

// extractValorantPayload decodes the base64 game payload carried inside
// a stanza's <valorant><p> element.
func extractValorantPayload(stanza string) map[string]interface{} {
	valStart := strings.Index(stanza, "<valorant>")
	if valStart < 0 {
		return nil
	}
	section := stanza[valStart:]
	pStart := strings.Index(section, "<p>")
	if pStart < 0 {
		return nil
	}
	rest := section[pStart+len("<p>"):]
	pEnd := strings.Index(rest, "</p>")
	if pEnd < 0 {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(rest[:pEnd])
	if err != nil {
		return nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil
	}
	return payload
}

// extractKeystoneTS reads the keystone timestamp from a stanza.
func extractKeystoneTS(stanza string) int64 {
	ksStart := strings.Index(stanza, "<keystone>")
	if ksStart < 0 {
		return 0
	}
	section := stanza[ksStart:]
	tsStart := strings.Index(section, "<s.t>")
	if tsStart < 0 {
		return 0
	}
	rest := section[tsStart+len("<s.t>"):]
	tsEnd := strings.Index(rest, "</s.t>")
	if tsEnd < 0 {
		return 0
	}
	ts, _ := strconv.ParseInt(rest[:tsEnd], 10, 64)
	return ts
}

// forEachPresence walks every complete <presence>...</presence> block.
func forEachPresence(data string, fn func(stanza string)) {
	searchFrom := 0
	for {
		pos := strings.Index(data[searchFrom:], "<presence")
		if pos < 0 {
			return
		}
		abs := searchFrom + pos
		rest := data[abs:]
		end := strings.Index(rest, "</presence>")
		if end < 0 {
			return
		}
		end += len("</presence>")
		fn(rest[:end])
		searchFrom = abs + end
	}
}

// extractOwnPayload finds the caller's own presence in a data burst and
// returns its game payload and keystone timestamp, or nil when none of
// the stanzas carry one.
func extractOwnPayload(data, puuid string) (map[string]interface{}, int64) {
	if puuid == "" {
		return nil, 0
	}
	var payload map[string]interface{}
	var ksTS int64
	forEachPresence(data, func(stanza string) {
		if payload != nil {
			return
		}
		if extractPresencePUUID(stanza) != puuid {
			return
		}
		if !strings.Contains(stanza, "<valorant>") || !strings.Contains(stanza, "<keystone>") {
			return
		}
		if p := extractValorantPayload(stanza); p != nil {
			payload = p
			ksTS = extractKeystoneTS(stanza)
		}
	})
	return payload, ksTS
}

// updateFriends folds the stanzas in a data burst into the friends map,
// skipping the caller's own presence. Returns how many stanzas applied.
func updateFriends(data, ownPUUID string, friends map[string]*FriendPresence) int {
	parsed := 0
	forEachPresence(data, func(stanza string) {
		puuid := extractPresencePUUID(stanza)
		if puuid == "" || puuid == ownPUUID {
			return
		}
		entry, ok := friends[puuid]
		if !ok {
			entry = &FriendPresence{PUUID: puuid}
			friends[puuid] = entry
		}
		entry.Show = extractShow(stanza)
		if payload := extractValorantPayload(stanza); payload != nil {
			entry.ValorantData = payload
		}
		entry.LastUpdated = time.Now().UnixMilli()
		parsed++
	})
	return parsed
}
