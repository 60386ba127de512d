package billing

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalogFile reports a malformed static plan catalog.
var ErrInvalidCatalogFile = errors.New("billing: invalid plan catalog file")

type staticCatalog struct {
	Plans []staticPlan `yaml:"plans"`
}

type staticPlan struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	PriceCents  int64    `yaml:"price_cents"`
	Currency    string   `yaml:"currency"`
	Interval    string   `yaml:"interval"`
	Features    []string `yaml:"features"`
	ButtonLabel string   `yaml:"button_label"`
	ButtonStyle string   `yaml:"button_style"`
}

// StaticSource is a PlanSource backed by a YAML catalog file, used in
// direct-provider mode where no billing function serves get_plans.
type StaticSource struct {
	plans []Plan
}

// NewStaticSource loads and validates the catalog once at startup.
func NewStaticSource(path string) (*StaticSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalogFile, err)
	}
	return ParseStaticCatalog(raw)
}

// ParseStaticCatalog builds a StaticSource from raw YAML. Plan ids must be
// present and unique.
func ParseStaticCatalog(raw []byte) (*StaticSource, error) {
	var catalog staticCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, errors.Join(ErrInvalidCatalogFile, err)
	}

	seen := make(map[string]struct{}, len(catalog.Plans))
	plans := make([]Plan, 0, len(catalog.Plans))
	for _, p := range catalog.Plans {
		if p.ID == "" {
			return nil, errors.Join(ErrInvalidCatalogFile, errors.New("plan without id"))
		}
		if _, dup := seen[p.ID]; dup {
			return nil, errors.Join(ErrInvalidCatalogFile, fmt.Errorf("duplicate plan id %q", p.ID))
		}
		seen[p.ID] = struct{}{}

		currency := p.Currency
		if currency == "" {
			currency = "USD"
		}
		interval := BillingInterval(p.Interval)
		if interval == "" {
			interval = IntervalMonthly
		}

		plans = append(plans, Plan{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       Money{Amount: p.PriceCents, Currency: currency},
			Interval:    interval,
			Features:    p.Features,
			ButtonLabel: p.ButtonLabel,
			ButtonStyle: p.ButtonStyle,
		})
	}

	return &StaticSource{plans: plans}, nil
}

// Plans returns the loaded catalog.
func (s *StaticSource) Plans(ctx context.Context) ([]Plan, error) {
	out := make([]Plan, len(s.plans))
	copy(out, s.plans)
	return out, nil
}
