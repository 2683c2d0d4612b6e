// Package allowlist decides which command strings may be executed on the remote host.
//
// A command is allowed only when, after trimming surrounding whitespace, the whole
// string matches one of a fixed ordered set of anchored regular expressions.
package allowlist

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

// MatchResult contains the outcome of matching a command against the allow patterns.
type MatchResult struct {
	Allowed bool
	// Pattern is the expression that matched (empty if not allowed).
	Pattern string
}

// Matcher knows if a command is allowed.
type Matcher interface {
	// Match checks the trimmed command against the allow patterns.
	Match(cmd string) MatchResult
	// Patterns returns the ordered allow patterns.
	Patterns() []model.AllowPattern
}

var _ Matcher = &RegexMatcher{}

type compiledPattern struct {
	regex   *regexp.Regexp
	pattern model.AllowPattern
}

// RegexMatcher implements Matcher using full string anchored regular expressions.
// It's immutable after creation and safe for concurrent use.
type RegexMatcher struct {
	patterns []compiledPattern
}

// NewRegexMatcher compiles the patterns. Any pattern that is not anchored at both
// ends or does not compile makes the whole set invalid.
func NewRegexMatcher(patterns []model.AllowPattern) (*RegexMatcher, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("at least one allow pattern is required: %w", model.ErrNotValid)
	}

	compiled := make([]compiledPattern, 0, len(patterns))
	for i, p := range patterns {
		if err := checkAnchored(p.Expr); err != nil {
			return nil, fmt.Errorf("pattern %d %q: %w", i+1, p.Expr, err)
		}

		// Wrapping keeps top level alternations (^a|b$) inside the anchors.
		re, err := regexp.Compile(`\A(?:` + p.Expr + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("pattern %d %q does not compile: %w: %w", i+1, p.Expr, err, model.ErrNotValid)
		}

		compiled = append(compiled, compiledPattern{regex: re, pattern: p})
	}

	return &RegexMatcher{patterns: compiled}, nil
}

// NewDefaultMatcher returns a matcher with the built-in patterns.
func NewDefaultMatcher() (*RegexMatcher, error) {
	return NewRegexMatcher(DefaultPatterns())
}

// Match checks a command against the patterns in order.
func (m *RegexMatcher) Match(cmd string) MatchResult {
	cmd = strings.TrimSpace(cmd)
	for _, cp := range m.patterns {
		if cp.regex.MatchString(cmd) {
			return MatchResult{Allowed: true, Pattern: cp.pattern.Expr}
		}
	}

	return MatchResult{Allowed: false}
}

// IsAllowed returns true if the command matches any pattern.
func (m *RegexMatcher) IsAllowed(cmd string) bool {
	return m.Match(cmd).Allowed
}

// Patterns returns a copy of the ordered allow patterns.
func (m *RegexMatcher) Patterns() []model.AllowPattern {
	ps := make([]model.AllowPattern, 0, len(m.patterns))
	for _, cp := range m.patterns {
		ps = append(ps, cp.pattern)
	}
	return ps
}

func checkAnchored(expr string) error {
	if !strings.HasPrefix(expr, "^") {
		return fmt.Errorf("pattern must start with ^: %w", model.ErrNotValid)
	}

	// The final $ must not be escaped (an odd number of backslashes before it).
	if !strings.HasSuffix(expr, "$") || len(expr) < 2 {
		return fmt.Errorf("pattern must end with $: %w", model.ErrNotValid)
	}
	backslashes := 0
	for i := len(expr) - 2; i >= 0 && expr[i] == '\\'; i-- {
		backslashes++
	}
	if backslashes%2 == 1 {
		return fmt.Errorf("pattern must end with an unescaped $: %w", model.ErrNotValid)
	}

	return nil
}
