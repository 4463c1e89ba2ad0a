package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ─── Decisions ───────────────────────────────────────────────────────────────

// RecordDecision stores a decision against an existing plan.
func (s *Store) RecordDecision(ctx context.Context, planID string, d Decision) (*Decision, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return nil, invalid("title", "is required")
	}
	d.Options = cleanStrings(d.Options)
	d.AgentsAffected = cleanStrings(d.AgentsAffected)

	unlock := s.locks.lock(planID)
	defer unlock()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.planExists(ctx, planID); err != nil {
		return nil, err
	}

	d.ID = newID(KindDecision)
	d.PlanID = planID
	d.CreatedAt = timeNow().UTC()

	text := searchText(append([]string{d.Title, d.Description, d.Context, d.Decision, d.Rationale,
		d.DecisionMaker, d.ImpactScope}, append(d.Options, d.AgentsAffected...)...)...)
	if err := s.insertRecord(ctx, s.db, KindDecision, d.ID, planID, d.Title, d, text, d.CreatedAt); err != nil {
		return nil, s.storageErr("record decision", err)
	}
	s.log.Info("decision recorded", zap.String("plan_id", planID), zap.String("id", d.ID))
	return &d, nil
}

// ─── Reflections ─────────────────────────────────────────────────────────────

// CreateReflection stores an iteration reflection against an existing
// plan. A zero IterationNumber is assigned the next number for the plan.
func (s *Store) CreateReflection(ctx context.Context, planID string, r Reflection) (*Reflection, error) {
	if r.IterationNumber < 0 {
		return nil, invalid("iteration_number", "must be positive, got %d", r.IterationNumber)
	}
	if r.QualityScore < 0 || r.QualityScore > 10 {
		return nil, invalid("quality_score", "must be between 0 and 10, got %d", r.QualityScore)
	}
	r.PlannedObjectives = cleanStrings(r.PlannedObjectives)
	r.AchievedObjectives = cleanStrings(r.AchievedObjectives)
	r.CompletedTasks = cleanStrings(r.CompletedTasks)
	r.Blockers = cleanStrings(r.Blockers)
	r.WhatWorked = cleanStrings(r.WhatWorked)
	r.WhatFailed = cleanStrings(r.WhatFailed)
	r.Insights = cleanStrings(r.Insights)
	r.Recommendations = cleanStrings(r.Recommendations)
	r.NextFocus = strings.TrimSpace(r.NextFocus)

	unlock := s.locks.lock(planID)
	defer unlock()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.planExists(ctx, planID); err != nil {
		return nil, err
	}

	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return nil, s.storageErr("create reflection", err)
	}
	defer tx.Rollback()

	if r.IterationNumber == 0 {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM records WHERE plan_id = ? AND kind = 'reflection'`, planID).Scan(&n)
		if err != nil {
			return nil, s.storageErr("create reflection", err)
		}
		r.IterationNumber = n + 1
	}

	r.ID = newID(KindReflection)
	r.PlanID = planID
	r.CreatedAt = timeNow().UTC()

	var parts []string
	for _, list := range [][]string{r.PlannedObjectives, r.AchievedObjectives, r.CompletedTasks,
		r.Blockers, r.WhatWorked, r.WhatFailed, r.Insights, r.Recommendations} {
		parts = append(parts, list...)
	}
	parts = append(parts, r.NextFocus)
	title := Record{Reflection: &r}.Title()

	if err := s.insertRecord(ctx, tx, KindReflection, r.ID, planID, title, r, searchText(parts...), r.CreatedAt); err != nil {
		return nil, s.storageErr("create reflection", err)
	}
	if err := s.commitHook(tx); err != nil {
		return nil, s.storageErr("create reflection", err)
	}
	return &r, nil
}

// ─── Constraints ─────────────────────────────────────────────────────────────

// UpsertConstraint creates or replaces a constraint on an existing plan.
// It matches an existing constraint by explicit id, else by title within
// the plan. The bool result is true when a new constraint was created.
func (s *Store) UpsertConstraint(ctx context.Context, planID string, c Constraint) (*Constraint, bool, error) {
	if err := normalizeConstraint(&c); err != nil {
		return nil, false, err
	}

	unlock := s.locks.lock(planID)
	defer unlock()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.planExists(ctx, planID); err != nil {
		return nil, false, err
	}

	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return nil, false, s.storageErr("upsert constraint", err)
	}
	defer tx.Rollback()

	existing, err := s.findConstraint(ctx, tx, planID, c.ID, c.Title)
	if err != nil {
		return nil, false, err
	}

	now := timeNow().UTC()
	c.PlanID = planID
	c.UpdatedAt = now
	created := existing == nil
	if created {
		c.ID = newID(KindConstraint)
		c.CreatedAt = now
	} else {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}

	text := searchText(c.Title, c.Rule, string(c.Kind), c.Scope, c.Priority)
	if created {
		err = s.insertRecord(ctx, tx, KindConstraint, c.ID, planID, c.Title, c, text, c.CreatedAt)
	} else {
		var body []byte
		body, err = json.Marshal(c)
		if err == nil {
			_, err = s.execHook(ctx, tx,
				`UPDATE records SET title = ?, body = ?, search_text = ?, updated_at = ? WHERE id = ?`,
				c.Title, string(body), text, formatTime(now), c.ID)
		}
	}
	if err != nil {
		return nil, false, s.storageErr("upsert constraint", err)
	}
	if err := s.commitHook(tx); err != nil {
		return nil, false, s.storageErr("upsert constraint", err)
	}

	s.log.Info("constraint saved",
		zap.String("plan_id", planID), zap.String("id", c.ID), zap.Bool("created", created))
	return &c, created, nil
}

func normalizeConstraint(c *Constraint) error {
	c.Title = strings.TrimSpace(c.Title)
	c.Rule = strings.TrimSpace(c.Rule)
	c.ID = strings.TrimSpace(c.ID)
	if c.Title == "" {
		return invalid("title", "is required")
	}
	if c.Rule == "" {
		return invalid("rule", "is required")
	}

	if c.Kind == "" {
		c.Kind = InferConstraintKind(c.Rule)
	}
	switch c.Kind {
	case ConstraintRequirement, ConstraintRestriction, ConstraintPreference:
	default:
		return invalid("kind", "%q must be one of: requirement, restriction, preference", c.Kind)
	}

	if c.Enforcement == "" {
		c.Enforcement = EnforcementStrict
	}
	if c.Enforcement != EnforcementStrict && c.Enforcement != EnforcementAdvisory {
		return invalid("enforcement", "%q must be one of: strict, advisory", c.Enforcement)
	}

	if c.Status == "" {
		c.Status = ConstraintActive
	}
	if c.Status != ConstraintActive && c.Status != ConstraintInactive {
		return invalid("status", "%q must be one of: active, inactive", c.Status)
	}
	return nil
}

// findConstraint looks up a plan's constraint by id, or by title when id
// is empty. An unknown explicit id is a NotFoundError; an unknown title
// returns nil.
func (s *Store) findConstraint(ctx context.Context, tx *sql.Tx, planID, id, title string) (*Constraint, error) {
	var body string
	var err error
	if id != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT body FROM records WHERE id = ? AND plan_id = ? AND kind = 'constraint'`, id, planID).Scan(&body)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("constraint", id)
		}
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT body FROM records WHERE plan_id = ? AND kind = 'constraint' AND lower(title) = lower(?)
			 ORDER BY created_at LIMIT 1`, planID, title).Scan(&body)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, s.storageErr("find constraint", err)
	}
	var c Constraint
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return nil, &StorageError{Op: "decode constraint", Err: err}
	}
	return &c, nil
}

// Constraints returns a plan's constraints in creation order. With
// activeOnly, inactive constraints are skipped.
func (s *Store) Constraints(ctx context.Context, planID string, activeOnly bool) ([]*Constraint, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.planExists(ctx, planID); err != nil {
		return nil, err
	}
	recs, err := s.planRecords(ctx, planID, KindConstraint)
	if err != nil {
		return nil, err
	}
	var out []*Constraint
	for _, r := range recs {
		if activeOnly && r.Constraint.Status != ConstraintActive {
			continue
		}
		out = append(out, r.Constraint)
	}
	return out, nil
}

// ─── Plan memory ─────────────────────────────────────────────────────────────

// PlanMemory returns a plan with every decision, reflection and
// constraint recorded against it, each in creation order.
func (s *Store) PlanMemory(ctx context.Context, planID string) (*PlanMemory, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	p, err := s.getPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	recs, err := s.planRecords(ctx, planID, "")
	if err != nil {
		return nil, err
	}

	pm := &PlanMemory{Plan: p}
	for _, r := range recs {
		switch r.Kind {
		case KindDecision:
			pm.Decisions = append(pm.Decisions, r.Decision)
		case KindReflection:
			pm.Reflections = append(pm.Reflections, r.Reflection)
		case KindConstraint:
			pm.Constraints = append(pm.Constraints, r.Constraint)
		}
	}
	return pm, nil
}

// ─── Row plumbing ────────────────────────────────────────────────────────────

func (s *Store) insertRecord(ctx context.Context, db execer, kind Kind, id, planID, title string, v any, text string, createdAt time.Time) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ts := formatTime(createdAt)
	_, err = s.execHook(ctx, db,
		`INSERT INTO records (id, plan_id, kind, title, body, search_text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, planID, string(kind), title, string(body), text, ts, ts)
	return err
}

// planRecords loads a plan's non-plan records in creation order, optionally
// filtered by kind.
func (s *Store) planRecords(ctx context.Context, planID string, kind Kind) ([]Record, error) {
	query := `SELECT kind, id, plan_id, body, created_at FROM records WHERE plan_id = ?`
	args := []any{planID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.queryHook(ctx, s.db, query, args...)
	if err != nil {
		return nil, s.storageErr("plan records", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageErr("plan records", err)
	}
	return out, nil
}
