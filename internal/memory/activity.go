package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"

	"github.com/HendryAvila/switchboard/internal/quality"
)

// ─── Activity log ────────────────────────────────────────────────────────────

// AppendActivity persists an activity entry and adds it to the in-process
// cache. Missing id and timestamp are generated. It takes no plan lock.
func (s *Store) AppendActivity(ctx context.Context, e ActivityEntry) (ActivityEntry, error) {
	e.Profile = strings.TrimSpace(e.Profile)
	e.Action = strings.TrimSpace(e.Action)
	if e.Profile == "" {
		return ActivityEntry{}, invalid("profile", "is required")
	}
	if e.Action == "" {
		return ActivityEntry{}, invalid("action", "is required")
	}
	if e.ID == "" {
		e.ID = newID("activity")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = timeNow()
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.Source == "" {
		e.Source = SourceManual
	}

	var qual sql.NullString
	if e.Quality != nil {
		b, err := json.Marshal(e.Quality)
		if err != nil {
			return ActivityEntry{}, invalid("quality", "%v", err)
		}
		qual = sql.NullString{String: string(b), Valid: true}
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.execHook(ctx, s.db,
		`INSERT INTO activity (id, ts, profile, action, plan_id, source, quality) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, formatTime(e.Timestamp), e.Profile, e.Action, e.PlanID, string(e.Source), qual)
	if err != nil {
		return ActivityEntry{}, s.storageErr("append activity", err)
	}

	s.activity.push(e)
	return e, nil
}

// ActivityFilter narrows RecentActivity. Zero values mean "no filter".
type ActivityFilter struct {
	Profile string
	PlanID  string
	Source  ActivitySource
	Limit   int
}

// RecentActivity returns cached activity entries, newest first. It never
// touches the database.
func (s *Store) RecentActivity(f ActivityFilter) []ActivityEntry {
	return s.activity.recent(f)
}

func (s *Store) loadActivityCache(ctx context.Context) error {
	rows, err := s.queryHook(ctx, s.db,
		`SELECT id, ts, profile, action, plan_id, source, quality
		 FROM (SELECT * FROM activity ORDER BY seq DESC LIMIT ?) ORDER BY seq`, s.cfg.ActivityCacheSize)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e ActivityEntry
		var ts string
		var planID, source, qual sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Profile, &e.Action, &planID, &source, &qual); err != nil {
			return err
		}
		e.Timestamp = parseTime(ts)
		e.PlanID = planID.String
		e.Source = ActivitySource(source.String)
		if qual.Valid && qual.String != "" {
			var q quality.Result
			if err := json.Unmarshal([]byte(qual.String), &q); err == nil {
				e.Quality = &q
			}
		}
		s.activity.push(e)
	}
	return rows.Err()
}

// activityCache is a fixed-size ring of the most recent entries.
type activityCache struct {
	mu   sync.RWMutex
	buf  []ActivityEntry
	next int
	full bool
}

func newActivityCache(size int) *activityCache {
	return &activityCache{buf: make([]ActivityEntry, size)}
}

func (c *activityCache) push(e ActivityEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf[c.next] = e
	c.next = (c.next + 1) % len(c.buf)
	if c.next == 0 {
		c.full = true
	}
}

func (c *activityCache) len() int {
	if c.full {
		return len(c.buf)
	}
	return c.next
}

func (c *activityCache) recent(f ActivityFilter) []ActivityEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := c.len()
	var out []ActivityEntry
	for i := 1; i <= n; i++ {
		e := c.buf[(c.next-i+len(c.buf))%len(c.buf)]
		if f.Profile != "" && e.Profile != f.Profile {
			continue
		}
		if f.PlanID != "" && e.PlanID != f.PlanID {
			continue
		}
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}
