package profiles

import (
	"fmt"
	"regexp"
)

// Matcher decides whether a trigger pattern fires on a request.
type Matcher interface {
	Match(text string) bool
	String() string
}

// regexpMatcher is the default case-insensitive regexp engine.
type regexpMatcher struct {
	src string
	re  *regexp.Regexp
}

func (m *regexpMatcher) Match(text string) bool { return m.re.MatchString(text) }
func (m *regexpMatcher) String() string         { return m.src }

// CompileFunc turns a pattern source into a Matcher.
type CompileFunc func(pattern string) (Matcher, error)

// CompileRegexp compiles pattern as a case-insensitive regular expression.
func CompileRegexp(pattern string) (Matcher, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return &regexpMatcher{src: pattern, re: re}, nil
}
