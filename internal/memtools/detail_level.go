// detail_level.go holds the detail_level parameter shared by the read-heavy
// tools: summary (ids and titles), standard (default, short snippets) and
// full (everything).
package memtools

import "fmt"

// Detail level constants.
const (
	DetailSummary  = "summary"
	DetailStandard = "standard"
	DetailFull     = "full"
)

// detailLevelValues returns the enum values for MCP tool definitions.
func detailLevelValues() []string {
	return []string{DetailSummary, DetailStandard, DetailFull}
}

// parseDetailLevel normalizes a detail_level string, defaulting to
// "standard" for empty or unrecognized values.
func parseDetailLevel(s string) string {
	switch s {
	case DetailSummary, DetailFull:
		return s
	default:
		return DetailStandard
	}
}

// summaryFooter is appended to summary-mode responses.
const summaryFooter = "\n---\n💡 Use detail_level: standard or full for more detail."

// navigationHint returns a one-line footer when results are capped by a
// limit. It is empty when everything fit.
func navigationHint(showing, total int, hint string) string {
	if total <= 0 || showing >= total {
		return ""
	}
	if hint != "" {
		return fmt.Sprintf("\n📊 Showing %d of %d. %s", showing, total, hint)
	}
	return fmt.Sprintf("\n📊 Showing %d of %d.", showing, total)
}

// estimateTokens approximates the token count of text with the chars/4
// heuristic. Non-empty text is at least one token.
func estimateTokens(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	if n < 4 {
		return 1
	}
	return n / 4
}

// tokenFooter returns a footer with the estimated token cost of a response.
func tokenFooter(text string) string {
	return fmt.Sprintf("\n📏 ~%s tokens", formatNumber(estimateTokens(text)))
}

// formatNumber formats an integer with comma separators.
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}
