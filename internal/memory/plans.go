package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/switchboard/internal/plans"
)

// ─── Plans ───────────────────────────────────────────────────────────────────

// CreatePlan validates the input and stores a new active plan whose first
// phase is active.
func (s *Store) CreatePlan(ctx context.Context, in PlanInput) (*plans.Plan, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "is required")
	}
	if err := plans.ValidatePhases(in.Phases); err != nil {
		return nil, invalid("phases", "%v", err)
	}

	now := timeNow().UTC()
	p := plans.New(newID(KindPlan), title, in.Phases)
	p.Description = strings.TrimSpace(in.Description)
	p.ProjectType = strings.TrimSpace(in.ProjectType)
	p.Priority = strings.TrimSpace(in.Priority)
	p.SuccessCriteria = cleanStrings(in.SuccessCriteria)
	p.CreatedAt = now
	p.UpdatedAt = now

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	body, err := json.Marshal(p)
	if err != nil {
		return nil, s.storageErr("create plan", err)
	}
	_, err = s.execHook(ctx, s.db,
		`INSERT INTO plans (id, title, status, body, search_text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, string(p.Status), string(body), planSearchText(p),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return nil, s.storageErr("create plan", err)
	}

	s.log.Info("plan created", zap.String("plan_id", p.ID), zap.Int("phases", len(p.Phases)))
	return p, nil
}

// GetPlan returns a plan by id.
func (s *Store) GetPlan(ctx context.Context, id string) (*plans.Plan, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.getPlan(ctx, id)
}

func (s *Store) getPlan(ctx context.Context, id string) (*plans.Plan, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM plans WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("plan", id)
	}
	if err != nil {
		return nil, s.storageErr("get plan", err)
	}
	return decodePlan(body)
}

// ListPlans returns plans, most recently updated first. An empty status
// lists every plan.
func (s *Store) ListPlans(ctx context.Context, status plans.Status) ([]*plans.Plan, error) {
	if status != "" {
		if err := plans.ValidateStatus(status); err != nil {
			return nil, invalid("status", "%v", err)
		}
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `SELECT body FROM plans`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY updated_at DESC, id`

	rows, err := s.queryHook(ctx, s.db, query, args...)
	if err != nil {
		return nil, s.storageErr("list plans", err)
	}
	defer rows.Close()

	var out []*plans.Plan
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, s.storageErr("list plans", err)
		}
		p, err := decodePlan(body)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageErr("list plans", err)
	}
	return out, nil
}

// ActivePlan returns the plan work is currently validated against: the
// current-plan pointer when it names an active plan, otherwise the most
// recently updated active plan. It returns nil, nil when no plan is active.
func (s *Store) ActivePlan(ctx context.Context) (*plans.Plan, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	current, err := s.getSetting(ctx, settingCurrentPlan)
	if err != nil {
		return nil, s.storageErr("active plan", err)
	}
	if current != "" {
		p, err := s.getPlan(ctx, current)
		switch {
		case err == nil && p.Status == plans.StatusActive:
			return p, nil
		case err != nil && !IsNotFound(err):
			return nil, err
		}
	}

	var body string
	err = s.db.QueryRowContext(ctx,
		`SELECT body FROM plans WHERE status = 'active' ORDER BY updated_at DESC, id LIMIT 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageErr("active plan", err)
	}
	return decodePlan(body)
}

// SetCurrentPlan points the active-plan selection at an active plan. An
// empty id clears the pointer.
func (s *Store) SetCurrentPlan(ctx context.Context, id string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	id = strings.TrimSpace(id)
	if id != "" {
		p, err := s.getPlan(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != plans.StatusActive {
			return invalid("plan_id", "plan %q is %s, only active plans can be current", id, p.Status)
		}
	}
	if err := s.putSetting(ctx, settingCurrentPlan, id); err != nil {
		return s.storageErr("set current plan", err)
	}
	return nil
}

// SetPlanStatus archives a plan as completed or cancelled, or resumes a
// cancelled plan.
func (s *Store) SetPlanStatus(ctx context.Context, id string, status plans.Status) (*plans.Plan, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	p, err := s.getPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := p.Status
	if err := plans.SetStatus(p, status); err != nil {
		return nil, invalid("status", "%v", err)
	}
	if prev == p.Status {
		return p, nil
	}
	p.UpdatedAt = timeNow().UTC()
	if err := s.updatePlan(ctx, p); err != nil {
		return nil, s.storageErr("set plan status", err)
	}
	s.log.Info("plan status changed",
		zap.String("plan_id", id), zap.String("from", string(prev)), zap.String("to", string(p.Status)))
	return p, nil
}

// UpdateProgress merges completed tasks into the plan's active phase and
// advances through every phase the set covers. Repeating an update is a
// no-op.
func (s *Store) UpdateProgress(ctx context.Context, planID string, tasks []string) (*ProgressResult, error) {
	if len(cleanStrings(tasks)) == 0 {
		return nil, invalid("completed_tasks", "at least one task is required")
	}

	unlock := s.locks.lock(planID)
	defer unlock()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	p, err := s.getPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	pr, err := plans.ApplyCompleted(p, tasks)
	if err != nil {
		return nil, invalid("plan", "%v", err)
	}

	if pr.Changed() {
		p.UpdatedAt = timeNow().UTC()
		if err := s.updatePlan(ctx, p); err != nil {
			return nil, s.storageErr("update progress", err)
		}
		for _, name := range pr.Advanced {
			s.obs.PhaseAdvanced(planID, name)
			s.log.Info("phase advanced", zap.String("plan_id", planID), zap.String("phase", name))
		}
	}

	return &ProgressResult{Plan: p, Progress: pr, Percent: plans.Percent(p)}, nil
}

func (s *Store) updatePlan(ctx context.Context, p *plans.Plan) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.execHook(ctx, s.db,
		`UPDATE plans SET title = ?, status = ?, body = ?, search_text = ?, updated_at = ? WHERE id = ?`,
		p.Title, string(p.Status), string(body), planSearchText(p), formatTime(p.UpdatedAt), p.ID)
	return err
}

// planExists reports whether a plan id is stored.
func (s *Store) planExists(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans WHERE id = ?`, id).Scan(&n); err != nil {
		return s.storageErr("lookup plan", err)
	}
	if n == 0 {
		return notFound("plan", id)
	}
	return nil
}

func decodePlan(body string) (*plans.Plan, error) {
	var p plans.Plan
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, &StorageError{Op: "decode plan", Err: err}
	}
	return &p, nil
}

func planSearchText(p *plans.Plan) string {
	parts := []string{p.Title, p.Description, p.ProjectType, p.Priority}
	parts = append(parts, p.SuccessCriteria...)
	for _, ph := range p.Phases {
		parts = append(parts, ph.Name)
		parts = append(parts, ph.Tasks...)
		parts = append(parts, ph.Keywords...)
	}
	return searchText(parts...)
}
