package tracker

import (
	"fmt"

	"github.com/HendryAvila/switchboard/internal/profiles"
)

// SecurityIssue is one unsafe pattern found in request or response text.
type SecurityIssue struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

func (i SecurityIssue) String() string {
	return fmt.Sprintf("%s (%s)", i.Message, i.Pattern)
}

const hardcodedSecretMessage = "hardcoded secret: read it from the environment instead"

var (
	dangerousPatterns = []string{
		`rm\s+-rf`,
		`del\s+/s`,
		`format\s+c:`,
		`__import__`,
		`\beval\s*\(`,
		`\bexec\s*\(`,
		`subprocess\.call`,
		`os\.system`,
	}
	secretPatterns = []string{
		`password\s*=\s*['"][^'"]+['"]`,
		`api_key\s*=\s*['"][^'"]+['"]`,
		`secret\s*=\s*['"][^'"]+['"]`,
		`token\s*=\s*['"][^'"]+['"]`,
	}

	dangerousMatchers = mustCompile(dangerousPatterns)
	secretMatchers    = mustCompile(secretPatterns)
)

func mustCompile(patterns []string) []profiles.Matcher {
	out := make([]profiles.Matcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := profiles.CompileRegexp(p)
		if err != nil {
			panic(err)
		}
		out = append(out, m)
	}
	return out
}

// Screen reports dangerous shell or eval patterns and hardcoded secrets in
// text. A secret is reported once however many secret patterns match.
func Screen(text string) []SecurityIssue {
	var issues []SecurityIssue
	for _, m := range dangerousMatchers {
		if m.Match(text) {
			issues = append(issues, SecurityIssue{Pattern: m.String(), Message: "potentially dangerous operation"})
		}
	}
	for _, m := range secretMatchers {
		if m.Match(text) {
			issues = append(issues, SecurityIssue{Pattern: m.String(), Message: hardcodedSecretMessage})
			break
		}
	}
	return issues
}
