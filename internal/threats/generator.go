// Package threats synthesizes plausible personal-data exposure findings for a
// user. The findings are simulated for trial and demo presentation.
package threats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/exposure-scanner/autoscan/internal/random"
	"github.com/exposure-scanner/autoscan/internal/sites"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Discovery rates per category.
const (
	RatePeopleSearch    = 0.85
	RateSocialMedia     = 0.70
	RateBackgroundCheck = 0.45
	RateDataBreaches    = 0.30
	RateFinancial       = 0.25
)

// UserData identifies the person being scanned. Every field is optional.
type UserData struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	FullName  string `json:"fullName,omitempty"`
}

// Threat is one simulated exposure finding. Threats are values; the caller
// owns any storage.
type Threat struct {
	ID                   string            `json:"id"`
	SiteName             string            `json:"site_name"`
	SiteURL              string            `json:"site_url"`
	SiteCategory         Category          `json:"site_category"`
	ThreatType           string            `json:"threat_type"`
	Severity             Severity          `json:"severity"`
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	ExposedData          map[string]string `json:"exposed_data"`
	RemovalDifficulty    Difficulty        `json:"removal_difficulty"`
	RemovalMethod        RemovalMethod     `json:"removal_method"`
	RemovalSteps         []string          `json:"removal_steps"`
	RemovalContactInfo   ContactInfo       `json:"removal_contact_info"`
	ConfidenceScore      int               `json:"confidence_score"`
	PriorityScore        float64           `json:"priority_score"`
	IsTrialSimulation    bool              `json:"is_trial_simulation"`
	EstimatedRemovalTime string            `json:"estimated_removal_time"`
	LastVerifiedAt       time.Time         `json:"last_verified_at"`
	DiscoveryDate        time.Time         `json:"discovery_date"`
}

// Generator produces simulated threats. It holds no per-call state and is
// safe for concurrent use.
type Generator struct {
	peopleSearch []Source
	rng          *random.Source
	clock        clockwork.Clock
	logger       *zap.SugaredLogger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithRand pins the random source.
func WithRand(rng *random.Source) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithClock replaces the clock used for discovery and verification dates.
func WithClock(clock clockwork.Clock) Option {
	return func(g *Generator) { g.clock = clock }
}

// NewGenerator builds a generator whose people-search pool is every catalog
// site that is not a background-check service.
func NewGenerator(catalog *sites.Catalog, logger *zap.SugaredLogger, opts ...Option) *Generator {
	g := &Generator{
		peopleSearch: peopleSearchPool(catalog),
		clock:        clockwork.NewRealClock(),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = random.NewUnseeded()
	}
	return g
}

func peopleSearchPool(catalog *sites.Catalog) []Source {
	var pool []Source
	for _, s := range catalog.Sites() {
		if s.Category == sites.CategoryBackgroundCheck {
			continue
		}
		pool = append(pool, Source{Name: s.Name, URL: s.URL, Kind: string(s.Category)})
	}
	return pool
}

// SimulateUserScan generates threats for user across every category, sorted
// by descending priority score.
func (g *Generator) SimulateUserScan(user UserData) []Threat {
	var threats []Threat

	threats = append(threats, g.discover(CategoryPeopleSearch, g.peopleSearch, RatePeopleSearch, user)...)
	threats = append(threats, g.discover(CategorySocialMedia, socialSites(), RateSocialMedia, user)...)
	threats = append(threats, g.discover(CategoryBackgroundCheck, backgroundCheckSites, RateBackgroundCheck, user)...)

	if user.Email != "" {
		threats = append(threats, g.discoverOne(CategoryDataBreaches, dataBreaches, RateDataBreaches, user)...)
	}
	threats = append(threats, g.discoverOne(CategoryFinancial, financialSources, RateFinancial, user)...)

	sort.SliceStable(threats, func(i, j int) bool {
		return threats[i].PriorityScore > threats[j].PriorityScore
	})

	now := g.clock.Now()
	for i := range threats {
		threats[i].DiscoveryDate = now.Add(-g.randomWithin(7 * 24 * time.Hour))
		threats[i].LastVerifiedAt = now.Add(-g.randomWithin(30 * 24 * time.Hour))
	}

	g.logger.Debugw("Simulated user scan",
		"threats", len(threats),
		"has_email", user.Email != "",
	)

	return threats
}

// discover picks floor(len(pool)*rate) sources without replacement.
func (g *Generator) discover(category Category, pool []Source, rate float64, user UserData) []Threat {
	count := int(float64(len(pool)) * rate)
	if count == 0 {
		return nil
	}

	shuffled := make([]Source, len(pool))
	copy(shuffled, pool)
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	out := make([]Threat, 0, count)
	for _, src := range shuffled[:count] {
		out = append(out, g.materialize(category, src, user))
	}
	return out
}

// discoverOne yields a single source with probability rate.
func (g *Generator) discoverOne(category Category, pool []Source, rate float64, user UserData) []Threat {
	if len(pool) == 0 || !g.rng.Chance(rate) {
		return nil
	}
	src := pool[g.rng.IntN(len(pool))]
	return []Threat{g.materialize(category, src, user)}
}

func (g *Generator) materialize(category Category, src Source, user UserData) Threat {
	library := templates[category]
	tpl := library[g.rng.IntN(len(library))]

	confidence := clamp(tpl.BaseConfidence+g.rng.IntRange(-10, 10), 50, 100)
	vars := placeholders(user, src.Name)

	return Threat{
		ID:                   uuid.New().String(),
		SiteName:             src.Name,
		SiteURL:              src.URL,
		SiteCategory:         category,
		ThreatType:           tpl.ThreatType,
		Severity:             tpl.Severity,
		Title:                interpolate(vars, tpl.Title),
		Description:          interpolate(vars, tpl.Description),
		ExposedData:          g.exposedData(tpl.ExposedData, user),
		RemovalDifficulty:    tpl.RemovalDifficulty,
		RemovalMethod:        tpl.RemovalMethod,
		RemovalSteps:         RemovalSteps(tpl.RemovalMethod, src.Name),
		RemovalContactInfo:   RemovalContact(tpl.RemovalMethod, src.Name),
		ConfidenceScore:      confidence,
		PriorityScore:        PriorityScore(tpl.Severity, confidence),
		IsTrialSimulation:    true,
		EstimatedRemovalTime: EstimatedRemovalTime(tpl.RemovalDifficulty),
	}
}

// DisplayName resolves the name used in descriptions.
func (u UserData) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return "your name"
}

func placeholders(user UserData, site string) *strings.Replacer {
	first := strings.TrimSpace(user.FirstName)
	if first == "" {
		first = "User"
	}
	email := strings.TrimSpace(user.Email)
	if email == "" {
		email = "your email address"
	}

	return strings.NewReplacer(
		"{site}", site,
		"{firstName}", first,
		"{lastName}", strings.TrimSpace(user.LastName),
		"{email}", email,
		"{fullName}", user.DisplayName(),
	)
}

// interpolate fills placeholders and collapses the gaps left by empty values.
func interpolate(vars *strings.Replacer, text string) string {
	return strings.Join(strings.Fields(vars.Replace(text)), " ")
}

func (g *Generator) exposedData(fields []string, user UserData) map[string]string {
	data := make(map[string]string, len(fields))
	for _, f := range fields {
		data[f] = g.fieldValue(f, user)
	}
	return data
}

func (g *Generator) fieldValue(field string, user UserData) string {
	switch field {
	case FieldFullName:
		return user.DisplayName()
	case FieldEmail:
		if user.Email != "" {
			return user.Email
		}
		return "on file"
	case FieldPhone:
		return g.phoneNumber()
	case FieldAddress:
		return g.streetAddress()
	case FieldAge:
		return fmt.Sprintf("%d", g.rng.IntRange(25, 65))
	case FieldRelatives:
		return fmt.Sprintf("%d relatives listed", g.rng.IntRange(1, 6))
	case FieldPreviousAddresses:
		return fmt.Sprintf("%s; %s", g.streetAddress(), g.streetAddress())
	case FieldEmployer:
		return employerNames[g.rng.IntN(len(employerNames))]
	case FieldEducation:
		return schoolNames[g.rng.IntN(len(schoolNames))]
	case FieldProfilePhoto:
		return "publicly visible"
	case FieldUsername:
		return g.username(user)
	case FieldCriminalRecords:
		return fmt.Sprintf("%d records searched", g.rng.IntRange(0, 3))
	case FieldCourtRecords:
		return fmt.Sprintf("%d filings", g.rng.IntRange(0, 4))
	case FieldPasswordHash:
		return "exposed (hashed)"
	case FieldBreachDate:
		return fmt.Sprintf("%d", g.rng.IntRange(2012, 2023))
	case FieldIPAddress:
		return fmt.Sprintf("%d.%d.%d.x", g.rng.IntRange(24, 223), g.rng.IntRange(0, 255), g.rng.IntRange(0, 255))
	case FieldPropertyRecords:
		return fmt.Sprintf("%d parcels", g.rng.IntRange(1, 3))
	case FieldLiens:
		return fmt.Sprintf("%d liens", g.rng.IntRange(0, 2))
	case FieldBankruptcies:
		return fmt.Sprintf("%d filings", g.rng.IntRange(0, 1))
	default:
		return "exposed"
	}
}

func (g *Generator) phoneNumber() string {
	return fmt.Sprintf("(%03d) %03d-%04d", g.rng.IntRange(201, 989), g.rng.IntRange(200, 999), g.rng.IntRange(0, 9999))
}

func (g *Generator) streetAddress() string {
	return fmt.Sprintf("%d %s %s, %s",
		g.rng.IntRange(100, 9999),
		streetNames[g.rng.IntN(len(streetNames))],
		streetSuffix[g.rng.IntN(len(streetSuffix))],
		cityStates[g.rng.IntN(len(cityStates))],
	)
}

func (g *Generator) username(user UserData) string {
	if local, _, ok := strings.Cut(user.Email, "@"); ok && local != "" {
		return local
	}
	base := strings.ToLower(strings.TrimSpace(user.FirstName + user.LastName))
	if base == "" {
		base = "user"
	}
	return fmt.Sprintf("%s%d", base, g.rng.IntRange(10, 99))
}

func (g *Generator) randomWithin(d time.Duration) time.Duration {
	minutes := int(d / time.Minute)
	return time.Duration(g.rng.IntN(minutes+1)) * time.Minute
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
