package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrapepilot/scrapedash/pkg/models"
)

func TestSourceOptionsUnion(t *testing.T) {
	t.Parallel()

	domains := []models.DomainCount{
		{Domain: "a.com", Count: 5},
		{Domain: "b.com", Count: 2},
	}
	items := []models.Item{
		{SourceDomain: "c.com"},
	}

	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, sourceOptions(domains, items))
}

func TestSourceOptionsDeduplicatesAcrossInputs(t *testing.T) {
	t.Parallel()

	domains := []models.DomainCount{
		{Domain: "github.com", Count: 9},
		{Domain: "arxiv.org", Count: 1},
	}
	items := []models.Item{
		{SourceDomain: "github.com"},
		{SourceDomain: "github.com"},
		{SourceDomain: "zztop.example"},
	}

	assert.Equal(t,
		[]string{"arxiv.org", "github.com", "zztop.example"},
		sourceOptions(domains, items))
}

func TestSourceOptionsSortedLexicographically(t *testing.T) {
	t.Parallel()

	domains := []models.DomainCount{
		{Domain: "z.com", Count: 100},
		{Domain: "m.com", Count: 50},
	}
	items := []models.Item{
		{SourceDomain: "a.com"},
	}

	got := sourceOptions(domains, items)
	assert.Equal(t, []string{"a.com", "m.com", "z.com"}, got,
		"count order must not leak into the projection")
}

func TestSourceOptionsEmptyInputs(t *testing.T) {
	t.Parallel()

	assert.Empty(t, sourceOptions(nil, nil))
	assert.Empty(t, sourceOptions([]models.DomainCount{}, []models.Item{}))
}

func TestSourceOptionsSkipsBlankDomains(t *testing.T) {
	t.Parallel()

	domains := []models.DomainCount{{Domain: "", Count: 3}}
	items := []models.Item{{SourceDomain: ""}, {SourceDomain: "x.org"}}

	assert.Equal(t, []string{"x.org"}, sourceOptions(domains, items))
}
