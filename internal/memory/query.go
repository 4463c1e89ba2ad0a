package memory

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/HendryAvila/switchboard/internal/plans"
)

// Criteria filters a memory query. Zero values mean "no filter".
type Criteria struct {
	// Text is matched case-insensitively as a substring of a record's
	// textual fields.
	Text     string
	Kind     Kind
	PlanID   string
	DateFrom time.Time
	DateTo   time.Time
	// Limit caps the result. Zero uses the store's configured limit.
	Limit int
}

// Query returns records matching every filter, ranked by relevance.
//
// Relevance is max(0, 100 − 5·ageDays) × typeWeight, where plans weigh 1.5,
// decisions 1.2 and everything else 1.0. Ties break most-recent-first, then
// by id.
func (s *Store) Query(ctx context.Context, c Criteria) ([]Record, error) {
	if c.Limit < 0 {
		return nil, invalid("limit", "must not be negative, got %d", c.Limit)
	}
	if c.Kind != "" && !validKinds[c.Kind] {
		return nil, invalid("type", "%q is not a record type", c.Kind)
	}
	if !c.DateFrom.IsZero() && !c.DateTo.IsZero() && c.DateFrom.After(c.DateTo) {
		return nil, invalid("date_from", "must not be after date_to")
	}
	limit := c.Limit
	if limit == 0 {
		limit = s.cfg.QueryLimit
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `SELECT kind, id, plan_id, body, created_at FROM (
			SELECT 'plan' AS kind, id, id AS plan_id, body, search_text, created_at FROM plans
			UNION ALL
			SELECT kind, id, plan_id, body, search_text, created_at FROM records
		) WHERE 1 = 1`
	var args []any

	if c.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(c.Kind))
	}
	if c.PlanID != "" {
		query += ` AND plan_id = ?`
		args = append(args, c.PlanID)
	}
	if text := strings.TrimSpace(c.Text); text != "" {
		query += ` AND search_text LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(text))+"%")
	}
	if !c.DateFrom.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(c.DateFrom))
	}
	if !c.DateTo.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, formatTime(c.DateTo))
	}

	rows, err := s.queryHook(ctx, s.db, query, args...)
	if err != nil {
		return nil, s.storageErr("query", err)
	}
	defer rows.Close()

	now := timeNow().UTC()
	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		r.Relevance = Relevance(r.Kind, r.CreatedAt, now)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageErr("query", err)
	}

	SortByRelevance(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Relevance scores a record of the given kind created at created, as seen
// at now. Age is measured in fractional days.
func Relevance(kind Kind, created, now time.Time) float64 {
	days := now.Sub(created).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Max(0, 100-5*days) * typeWeight(kind)
}

// SortByRelevance orders records by relevance descending, then most recent
// first, then by id.
func SortByRelevance(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord decodes a (kind, id, plan_id, body, created_at) row.
func scanRecord(row scanner) (Record, error) {
	var kind, id, planID, body, created string
	if err := row.Scan(&kind, &id, &planID, &body, &created); err != nil {
		return Record{}, &StorageError{Op: "scan record", Err: err}
	}

	r := Record{Kind: Kind(kind), ID: id, PlanID: planID, CreatedAt: parseTime(created)}
	var err error
	switch r.Kind {
	case KindPlan:
		r.PlanID = ""
		r.Plan = &plans.Plan{}
		err = json.Unmarshal([]byte(body), r.Plan)
	case KindDecision:
		r.Decision = &Decision{}
		err = json.Unmarshal([]byte(body), r.Decision)
	case KindReflection:
		r.Reflection = &Reflection{}
		err = json.Unmarshal([]byte(body), r.Reflection)
	case KindConstraint:
		r.Constraint = &Constraint{}
		err = json.Unmarshal([]byte(body), r.Constraint)
	default:
		return Record{}, &StorageError{Op: "scan record", Err: errUnknownKind(kind)}
	}
	if err != nil {
		return Record{}, &StorageError{Op: "decode " + kind, Err: err}
	}
	return r, nil
}

type errUnknownKind string

func (e errUnknownKind) Error() string { return "unknown record kind " + string(e) }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
