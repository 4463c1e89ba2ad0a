package tracker

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/textutil"
)

// Evidence weights and thresholds.
const (
	contradictionWeight = 0.6
	restrictionWeight   = 0.4
	negationWeight      = 0.6

	warnThreshold  = 0.4
	blockThreshold = 0.8
)

// contradiction pairs a constraint theme with request terms that work
// against it.
type contradiction struct {
	themes    []string
	conflicts []string
}

var contradictions = []contradiction{
	{
		themes:    []string{"interpretab", "explainab", "transparen"},
		conflicts: []string{"deep neural network", "neural network", "deep learning", "black box", "black-box", "ensemble", "transformer"},
	},
	{
		themes:    []string{"real-time", "realtime", "low latency", "latency"},
		conflicts: []string{"nightly batch", "batch job", "overnight", "cron job"},
	},
	{
		themes:    []string{"offline", "air-gapped", "no internet", "on-prem"},
		conflicts: []string{"cloud", "external api", "saas", "hosted service"},
	},
	{
		themes:    []string{"privacy", "pii", "gdpr", "personal data"},
		conflicts: []string{"upload", "third-party", "share publicly", "public bucket"},
	},
	{
		themes:    []string{"budget", "low cost", "cheap"},
		conflicts: []string{"gpu cluster", "paid api", "enterprise license"},
	},
}

// genericTerms never count as constraint vocabulary on their own.
var genericTerms = map[string]bool{
	"must": true, "never": true, "always": true, "avoid": true, "use": true, "using": true,
	"required": true, "require": true, "ensure": true, "only": true, "any": true,
	"model": true, "models": true, "data": true, "code": true, "project": true,
	"prefer": true, "preferred": true, "don't": true, "cannot": true, "can't": true,
	"mustn't": true, "forbid": true, "forbidden": true, "allowed": true,
}

var negationRE = regexp.MustCompile(`(?i)\b(?:without|no|skip|skipping|ignore|ignoring|drop|dropping|remove|removing|bypass)\s+(?:the\s+|any\s+|all\s+)?([a-z][a-z0-9-]*)`)

// vocabulary returns the non-generic content words of a rule.
func vocabulary(rule string) []string {
	var out []string
	for _, w := range textutil.Keywords(rule) {
		if !genericTerms[w] {
			out = append(out, w)
		}
	}
	return out
}

// sameStem reports whether two words share a five-letter prefix, or are
// equal when shorter.
func sameStem(a, b string) bool {
	n := 5
	if len(a) < n || len(b) < n {
		return a == b
	}
	return a[:n] == b[:n]
}

// evaluateConstraint scores how strongly a request goes against one
// constraint. Returns ok=false when the score stays below the warn
// threshold.
func evaluateConstraint(c *memory.Constraint, request string) (Finding, bool) {
	lowerReq := strings.ToLower(request)
	lowerRule := strings.ToLower(c.Title + " " + c.Rule)
	f := Finding{ConstraintID: c.ID, Title: c.Title}

	score := 0.0
	for _, con := range contradictions {
		if !containsAny(lowerRule, con.themes) {
			continue
		}
		for _, term := range con.conflicts {
			if strings.Contains(lowerReq, term) {
				score += contradictionWeight
				f.Evidence = append(f.Evidence, fmt.Sprintf("%q conflicts with %q", term, c.Title))
			}
		}
	}

	vocab := vocabulary(c.Rule)
	switch c.Kind {
	case memory.ConstraintRestriction:
		for _, w := range vocab {
			if strings.Contains(lowerReq, w) {
				score += restrictionWeight
				f.Evidence = append(f.Evidence, fmt.Sprintf("mentions restricted %q", w))
			}
		}
	case memory.ConstraintRequirement:
		for _, m := range negationRE.FindAllStringSubmatch(lowerReq, -1) {
			for _, w := range vocab {
				if sameStem(m[1], w) {
					score += negationWeight
					f.Evidence = append(f.Evidence, fmt.Sprintf("%q drops required %q", strings.TrimSpace(m[0]), w))
					break
				}
			}
		}
	}

	f.Score = math.Min(1, score)
	switch {
	case f.Score >= blockThreshold && enforcesHard(c):
		f.Level = Block
	case f.Score >= warnThreshold:
		f.Level = Warn
	default:
		return f, false
	}
	return f, true
}

// enforcesHard reports whether a constraint may block. Advisory
// constraints and preferences only ever warn.
func enforcesHard(c *memory.Constraint) bool {
	return c.Enforcement == memory.EnforcementStrict && c.Kind != memory.ConstraintPreference
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
