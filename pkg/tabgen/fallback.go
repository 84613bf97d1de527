package tabgen

import (
	"fmt"
	"net/url"
	"strings"

	"tidytabs/internal/models"
	"tidytabs/internal/util"
)

const snippetLen = 100

// Fallback returns the fixed three-tab search group for prompt. The group
// name is always exactly "Search: " plus the prompt, even past
// MaxGroupNameLen. It is pure and never fails.
func Fallback(prompt string) models.TabGroup {
	q := escapeQuery(prompt)
	return models.TabGroup{
		GroupName: "Search: " + prompt,
		Tabs: []models.TabEntry{
			{
				Title:       util.Truncate("Google Search - "+prompt, MaxTitleLen),
				URL:         "https://www.google.com/search?q=" + q,
				Description: "Search Google for your request",
			},
			{
				Title:       util.Truncate("YouTube - "+prompt, MaxTitleLen),
				URL:         "https://www.youtube.com/results?search_query=" + q,
				Description: "Find videos related to your request",
			},
			{
				Title:       util.Truncate("Wikipedia - "+prompt, MaxTitleLen),
				URL:         "https://en.wikipedia.org/w/index.php?search=" + q,
				Description: "Encyclopedia information",
			},
		},
	}
}

// FromSearchResults builds a "Research:" group straight from search hits,
// first occurrence of each URL, at most MaxTabs. ok is false when results
// hold no usable URL.
func FromSearchResults(prompt string, results []models.SearchResult) (models.TabGroup, bool) {
	group := models.TabGroup{GroupName: util.Truncate("Research: "+prompt, MaxGroupNameLen)}
	seen := make(map[string]struct{})
	for _, r := range results {
		if len(group.Tabs) == MaxTabs {
			break
		}
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		u := NormalizeURL(r.URL)
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}

		description := r.Snippet
		if len([]rune(description)) > snippetLen {
			description = util.Truncate(description, snippetLen) + "..."
		}
		title := r.Title
		if strings.TrimSpace(title) == "" {
			title = u
		}
		group.Tabs = append(group.Tabs, models.TabEntry{
			Title:       util.Truncate(title, MaxTitleLen),
			URL:         u,
			Description: description,
		})
	}
	return group, len(group.Tabs) > 0
}

// escapeQuery percent-encodes s for a query value, spaces as %20.
func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func fallbackResult(prompt string, reason error) Result {
	return Result{Group: Fallback(prompt), Fallback: true, Reason: reason}
}

func (r Result) String() string {
	if !r.Fallback {
		return fmt.Sprintf("group %q with %d tabs", r.Group.GroupName, len(r.Group.Tabs))
	}
	return fmt.Sprintf("fallback group %q: %v", r.Group.GroupName, r.Reason)
}
