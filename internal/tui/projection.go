package tui

import (
	"sort"

	"github.com/scrapepilot/scrapedash/pkg/models"
)

// sourceOptions is the option set for the source filter: the sorted,
// duplicate-free union of every domain known from the domain counts and
// from the items currently on the page. A domain appearing in either
// input always appears in the output.
func sourceOptions(domains []models.DomainCount, items []models.Item) []string {
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))

	add := func(domain string) {
		if domain == "" || seen[domain] {
			return
		}
		seen[domain] = true
		out = append(out, domain)
	}

	for _, d := range domains {
		add(d.Domain)
	}
	for _, it := range items {
		add(it.SourceDomain)
	}

	sort.Strings(out)
	return out
}
