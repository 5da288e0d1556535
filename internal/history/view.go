package history

import (
	"fmt"
	"sort"
	"strings"
)

// titleLimit caps the derived conversation title length.
const titleLimit = 50

// Item is one history listing entry.
type Item struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Prompt    string `json:"prompt"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// SessionGroup summarizes one conversation grouped by session id.
type SessionGroup struct {
	SessionID     string `json:"session_id"`
	Turns         int    `json:"turns"`
	FirstPrompt   string `json:"first_prompt"`
	LastTimestamp string `json:"last_timestamp"`
	IDs           []int  `json:"ids"`
}

// Turn is one prompt/response pair inside a session view.
type Turn struct {
	ID        int    `json:"id"`
	Prompt    string `json:"prompt"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// SessionView is the full conversation for one session id.
type SessionView struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Turns     int    `json:"turns"`
	Items     []Turn `json:"items"`
}

// List returns the most recent records with non-empty prompts, newest first.
func (l *Log) List(limit int) ([]Item, error) {
	records, err := l.Read()
	if err != nil {
		return nil, err
	}

	var valid []IndexedRecord
	for _, rec := range records {
		if strings.TrimSpace(rec.Prompt) != "" {
			valid = append(valid, rec)
		}
	}

	if limit > 0 && len(valid) > limit {
		valid = valid[len(valid)-limit:]
	}

	items := make([]Item, 0, len(valid))
	for i := len(valid) - 1; i >= 0; i-- {
		rec := valid[i]
		items = append(items, Item{
			ID:        rec.ID,
			Title:     titleFromPrompt(rec.Prompt),
			Prompt:    rec.Prompt,
			Timestamp: rec.Timestamp,
			SessionID: rec.SessionID,
			Mode:      rec.Mode,
		})
	}
	return items, nil
}

// Grouped returns conversations grouped by session id, newest first.
// Records without a session id are skipped.
func (l *Log) Grouped(limit int) ([]SessionGroup, error) {
	records, err := l.Read()
	if err != nil {
		return nil, err
	}

	byID := make(map[string][]IndexedRecord)
	for _, rec := range records {
		if rec.SessionID == "" {
			continue
		}
		if strings.TrimSpace(rec.Prompt) == "" && strings.TrimSpace(rec.Response) == "" {
			continue
		}
		byID[rec.SessionID] = append(byID[rec.SessionID], rec)
	}

	groups := make([]SessionGroup, 0, len(byID))
	for sid, recs := range byID {
		ids := make([]int, len(recs))
		for i, r := range recs {
			ids[i] = r.ID
		}
		groups = append(groups, SessionGroup{
			SessionID:     sid,
			Turns:         len(recs),
			FirstPrompt:   recs[0].Prompt,
			LastTimestamp: recs[len(recs)-1].Timestamp,
			IDs:           ids,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].LastTimestamp != groups[j].LastTimestamp {
			return groups[i].LastTimestamp > groups[j].LastTimestamp
		}
		return maxID(groups[i].IDs) > maxID(groups[j].IDs)
	})

	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

// Session returns the full conversation for a session id.
func (l *Log) Session(sessionID string) (*SessionView, error) {
	records, err := l.Read()
	if err != nil {
		return nil, err
	}

	var turns []Turn
	title := ""
	for _, rec := range records {
		if rec.SessionID != sessionID {
			continue
		}
		if title == "" {
			title = titleFromPrompt(rec.Prompt)
		}
		turns = append(turns, Turn{
			ID:        rec.ID,
			Prompt:    rec.Prompt,
			Response:  rec.Response,
			Timestamp: rec.Timestamp,
		})
	}

	if len(turns) == 0 {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}

	return &SessionView{
		SessionID: sessionID,
		Title:     title,
		Turns:     len(turns),
		Items:     turns,
	}, nil
}

// Get returns the record at the given line number.
func (l *Log) Get(id int) (*IndexedRecord, error) {
	records, err := l.Read()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("history item %d not found", id)
}

// titleFromPrompt derives a short listing title.
func titleFromPrompt(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\n", " ")
	if p == "" {
		return "New Chat"
	}
	runes := []rune(p)
	if len(runes) > titleLimit {
		return string(runes[:titleLimit]) + "…"
	}
	return p
}

func maxID(ids []int) int {
	mx := -1
	for _, id := range ids {
		if id > mx {
			mx = id
		}
	}
	return mx
}
