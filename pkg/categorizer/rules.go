package categorizer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tidytabs/internal/util"
)

// EducationCategory is the category the built-in rules force.
const EducationCategory = "Education"

// defaultEducationKeywords are matched as lower-case substrings. Academic
// titles ("GPA Calculator") are easily confused with finance ones ("Rate
// Calculator"), so these bypass the model.
var defaultEducationKeywords = []string{
	// universities and colleges
	"university", "college", "uoft", "utoronto", "ryerson", "york university",
	"mcmaster", "waterloo", "queens", "ubc", "mcgill", "carleton",

	// academic terms
	"course", "gpa", "grade", "academic", "semester", "transcript",
	"enrollment", "registration", "tuition", "scholarship", "professor",
	"lecture", "tutorial", "exam", "assignment", "syllabus",

	// educational platforms
	"rate my professor", "ratemyprofessor", "course selection",
	"degree audit", "academic calendar", "class schedule",
}

// Rule forces Category for any title containing one of Keywords.
type Rule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// RuleSet is an ordered list of keyword overrides. The first matching
// keyword of the first matching rule wins.
type RuleSet struct {
	rules []Rule
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleSet normalizes keywords to lower case and drops empty entries.
func NewRuleSet(rules ...Rule) *RuleSet {
	rs := &RuleSet{}
	for _, r := range rules {
		category := strings.TrimSpace(r.Category)
		if category == "" {
			continue
		}
		keywords := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			continue
		}
		rs.rules = append(rs.rules, Rule{Category: category, Keywords: keywords})
	}
	return rs
}

// DefaultRuleSet returns the built-in Education override.
func DefaultRuleSet() *RuleSet {
	return NewRuleSet(Rule{Category: EducationCategory, Keywords: defaultEducationKeywords})
}

// LoadRuleSet reads rules from a YAML file of the form:
//
//	rules:
//	  - category: Education
//	    keywords: [university, gpa]
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file '%s': %w", path, err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules file '%s': %w", path, err)
	}
	for i, r := range f.Rules {
		if strings.TrimSpace(r.Category) == "" {
			return nil, fmt.Errorf("rules file '%s': rule %d has no category", path, i)
		}
		if strings.EqualFold(strings.TrimSpace(r.Category), "other") {
			return nil, fmt.Errorf("rules file '%s': rule %d targets the overflow category", path, i)
		}
	}
	return NewRuleSet(f.Rules...), nil
}

// Match reports the category forced for title, and the keyword that fired.
func (s *RuleSet) Match(title string) (category, keyword string, ok bool) {
	if s == nil {
		return "", "", false
	}
	lower := strings.ToLower(util.CleanText(title))
	for _, r := range s.rules {
		for _, k := range r.Keywords {
			if strings.Contains(lower, k) {
				return r.Category, k, true
			}
		}
	}
	return "", "", false
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
