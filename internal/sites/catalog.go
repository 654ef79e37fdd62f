// Package sites holds the fixed catalog of data-broker sites swept by the scheduler.
package sites

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Category classifies a broker site by the kind of data it sells.
type Category string

const (
	CategoryBackgroundCheck Category = "background_check"
	CategoryPeopleSearch    Category = "people_search"
	CategoryPublicRecords   Category = "public_records"
	CategoryPhoneAddress    Category = "phone_address"
	CategoryOther           Category = "other"
)

// ErrInvalidCatalog is returned when the embedded site list cannot be decoded.
var ErrInvalidCatalog = errors.New("invalid site catalog")

// Site is a single catalog entry. IDs are 1-based and stable for the life of a Catalog.
type Site struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Category Category `json:"category"`
}

//go:embed data/broker_sites.json
var brokerSitesData []byte

type siteList struct {
	Sites []string `json:"sites"`
}

// keyword groups are checked in order; the first group with a hit wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryBackgroundCheck, []string{"background", "check", "verif", "truth", "instant"}},
	{CategoryPeopleSearch, []string{"people", "person", "search", "find", "who", "spokeo", "radaris"}},
	{CategoryPublicRecords, []string{"record", "court", "arrest", "public"}},
	{CategoryPhoneAddress, []string{"phone", "address", "number", "411", "pages", "caller"}},
}

// DeriveCategory classifies a site by keyword-matching its name.
func DeriveCategory(name string) Category {
	lower := strings.ToLower(name)
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.category
			}
		}
	}
	return CategoryOther
}

// DefaultNames returns the embedded list of broker hostnames.
func DefaultNames() ([]string, error) {
	var list siteList
	if err := json.Unmarshal(brokerSitesData, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return list.Sites, nil
}

// Catalog is an immutable, ordered set of sites.
type Catalog struct {
	sites []Site
}

// NewCatalog builds a catalog from hostnames. Blank and duplicate names are skipped.
func NewCatalog(names []string) *Catalog {
	seen := make(map[string]bool, len(names))
	sites := make([]Site, 0, len(names))

	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		sites = append(sites, Site{
			ID:       len(sites) + 1,
			Name:     name,
			URL:      "https://www." + name,
			Category: DeriveCategory(name),
		})
	}

	return &Catalog{sites: sites}
}

// Default builds a catalog from the embedded site list.
func Default() (*Catalog, error) {
	names, err := DefaultNames()
	if err != nil {
		return nil, err
	}
	return NewCatalog(names), nil
}

// Sites returns a copy of the catalog entries.
func (c *Catalog) Sites() []Site {
	out := make([]Site, len(c.sites))
	copy(out, c.sites)
	return out
}

// Len returns the number of sites.
func (c *Catalog) Len() int {
	return len(c.sites)
}
