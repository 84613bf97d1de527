package tabgen

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy tries to pull a Candidate out of model text.
type Strategy func(text string) (Candidate, bool)

var (
	groupSpanPattern = regexp.MustCompile(`\{[^{}]*"group_name"[^{}]*"tabs"[^{}]*\[[^\]]*\][^{}]*\}`)
	fencedPattern    = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(\\{.*?\\})\\s*```")
	outerPattern     = regexp.MustCompile(`(?s)\{.*\}`)
)

// DefaultStrategies are tried in order by Extract.
var DefaultStrategies = []Strategy{
	DirectJSON,
	PatternStrategy(groupSpanPattern, 0),
	PatternStrategy(fencedPattern, 1),
	PatternStrategy(outerPattern, 0),
}

// Extract returns the first candidate any strategy accepts. Blank text
// yields no result.
func Extract(text string) (Candidate, bool) {
	return ExtractWith(DefaultStrategies, text)
}

// ExtractWith runs strategies in order over text.
func ExtractWith(strategies []Strategy, text string) (Candidate, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	for _, s := range strategies {
		if c, ok := s(text); ok {
			return c, true
		}
	}
	return nil, false
}

// DirectJSON accepts text that is, in its entirety, one JSON object.
func DirectJSON(text string) (Candidate, bool) {
	var c Candidate
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &c); err != nil || c == nil {
		return nil, false
	}
	return c, true
}

// PatternStrategy tries every match of re (using capture group when > 0)
// and accepts the first that decodes to an object holding both
// "group_name" and "tabs".
func PatternStrategy(re *regexp.Regexp, group int) Strategy {
	return func(text string) (Candidate, bool) {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if group >= len(m) {
				continue
			}
			var c Candidate
			if err := json.Unmarshal([]byte(m[group]), &c); err != nil || c == nil {
				continue
			}
			_, hasName := c["group_name"]
			_, hasTabs := c["tabs"]
			if hasName && hasTabs {
				return c, true
			}
		}
		return nil, false
	}
}
