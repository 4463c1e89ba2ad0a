package tracker

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/switchboard/internal/plans"
	"github.com/HendryAvila/switchboard/internal/textutil"
)

// EnforceSequence checks an action against the plan's phase order.
//
// With t the action's phase and k the active phase: t == k fits; t < k
// warns (revisits a done phase); t == k+1 warns (ahead of plan); t >= k+2
// blocks. Untagged actions are tagged by whole-word phase-name or task
// mentions;
// actions that cannot be tagged and share no vocabulary with the active
// phase warn as tangential.
func EnforceSequence(a Action, p *plans.Plan) SequenceCheck {
	if p == nil {
		return SequenceCheck{Fits: true, Verdict: Allow, Reason: "no plan to enforce"}
	}
	k := plans.ActivePhaseIndex(p)
	if p.Status != plans.StatusActive || k < 0 {
		return SequenceCheck{Fits: true, Verdict: Allow, Reason: fmt.Sprintf("plan is %s, no phase to enforce", p.Status)}
	}
	active := p.Phases[k]

	t := -1
	if a.Phase != "" {
		t = plans.PhaseIndex(p, a.Phase)
		if t < 0 {
			return SequenceCheck{
				Verdict: Warn,
				Reason:  fmt.Sprintf("unknown phase %q; active phase is %q", a.Phase, active.Name),
			}
		}
	} else {
		t = tagPhase(a.Text, p, k)
	}

	if t < 0 {
		if sharesVocabulary(a.Text, active) {
			return SequenceCheck{Fits: true, Verdict: Allow, Reason: fmt.Sprintf("aligned with active phase %q", active.Name), TargetPhase: active.Name}
		}
		return SequenceCheck{Verdict: Warn, Reason: fmt.Sprintf("tangential to active phase %q", active.Name)}
	}

	target := p.Phases[t].Name
	switch {
	case t == k:
		return SequenceCheck{Fits: true, Verdict: Allow, Reason: fmt.Sprintf("fits active phase %q", target), TargetPhase: target}
	case t < k:
		return SequenceCheck{Verdict: Warn, Reason: fmt.Sprintf("revisits completed phase %q", target), TargetPhase: target}
	case t == k+1:
		return SequenceCheck{Verdict: Warn, Reason: fmt.Sprintf("ahead of plan: %q starts after %q", target, active.Name), TargetPhase: target}
	default:
		return SequenceCheck{
			Verdict:     Block,
			Reason:      fmt.Sprintf("phase prerequisite not met: %q requires %q and %d more phase(s) first", target, active.Name, t-k-1),
			TargetPhase: target,
		}
	}
}

// tagPhase finds the phase an action belongs to by a whole-word mention of
// a phase name or task. The active phase wins when several match; otherwise the
// earliest match is used. Returns -1 when nothing matches.
func tagPhase(text string, p *plans.Plan, active int) int {
	first := -1
	for i, ph := range p.Phases {
		if !phaseMentioned(text, ph) {
			continue
		}
		if i == active {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

func phaseMentioned(text string, ph plans.Phase) bool {
	if textutil.ContainsPhrase(text, ph.Name) {
		return true
	}
	for _, task := range ph.Tasks {
		if textutil.ContainsPhrase(text, task) {
			return true
		}
	}
	return false
}

// sharesVocabulary reports whether the request has any content word in
// common with the phase's name, tasks or declared keywords.
func sharesVocabulary(text string, ph plans.Phase) bool {
	kws := textutil.Keywords(text)
	if len(kws) == 0 {
		return false
	}
	phaseText := ph.Name + " " + strings.Join(ph.Tasks, " ") + " " + strings.Join(ph.Keywords, " ")
	return textutil.Overlap(kws, phaseText) > 0
}
