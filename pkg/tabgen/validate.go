package tabgen

import (
	"fmt"
	"strconv"
	"strings"

	"tidytabs/internal/models"
	"tidytabs/internal/util"
)

// Limits applied to every generated group.
const (
	MaxTabs           = 8
	MaxTitleLen       = 100
	MaxDescriptionLen = 200
	MaxGroupNameLen   = 50
	DefaultGroupName  = "Generated Tabs"
)

// Provenance is the set of URLs a grounded group may link to.
type Provenance map[string]struct{}

// NewProvenance indexes the normalized URL of every result.
func NewProvenance(results []models.SearchResult) Provenance {
	p := make(Provenance, len(results))
	for _, r := range results {
		p[NormalizeURL(r.URL)] = struct{}{}
	}
	return p
}

// Contains reports whether url, once normalized, came from the results.
func (p Provenance) Contains(url string) bool {
	_, ok := p[NormalizeURL(url)]
	return ok
}

// NormalizeURL trims url and prepends https:// when it has no http prefix.
func NormalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	return url
}

// Validate turns a candidate into a TabGroup. Bad tabs are dropped, not
// fatal; the group fails only when no tab survives. A nil provenance
// disables the URL membership check.
func Validate(c Candidate, provenance Provenance) (models.TabGroup, error) {
	rawTabs, ok := c["tabs"]
	if !ok {
		return models.TabGroup{}, fmt.Errorf("%w: candidate has no tabs", models.ErrValidation)
	}
	list, ok := rawTabs.([]any)
	if !ok {
		return models.TabGroup{}, fmt.Errorf("%w: tabs is %T, not a list", models.ErrValidation, rawTabs)
	}
	if len(list) == 0 {
		return models.TabGroup{}, fmt.Errorf("%w: tabs is empty", models.ErrValidation)
	}

	group := models.TabGroup{GroupName: groupName(c["group_name"])}
	for _, item := range list {
		if len(group.Tabs) == MaxTabs {
			break
		}
		tab, ok := validateTab(item)
		if !ok {
			continue
		}
		if provenance != nil && !provenance.Contains(tab.URL) {
			continue
		}
		group.Tabs = append(group.Tabs, tab)
	}
	if len(group.Tabs) == 0 {
		return models.TabGroup{}, fmt.Errorf("%w: no valid tabs among %d candidates", models.ErrValidation, len(list))
	}
	return group, nil
}

func validateTab(item any) (models.TabEntry, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return models.TabEntry{}, false
	}
	url, ok := obj["url"].(string)
	if !ok || strings.TrimSpace(url) == "" {
		return models.TabEntry{}, false
	}
	rawTitle, ok := obj["title"]
	if !ok {
		return models.TabEntry{}, false
	}
	title, ok := scalarString(rawTitle)
	if !ok {
		return models.TabEntry{}, false
	}
	description, _ := scalarString(obj["description"])

	return models.TabEntry{
		Title:       util.Truncate(title, MaxTitleLen),
		URL:         NormalizeURL(url),
		Description: util.Truncate(description, MaxDescriptionLen),
	}, true
}

func groupName(v any) string {
	name, ok := scalarString(v)
	if !ok || strings.TrimSpace(name) == "" {
		name = DefaultGroupName
	}
	return util.Truncate(name, MaxGroupNameLen)
}

// scalarString stringifies JSON scalars. Null, objects and arrays are
// rejected.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
