// Package adjustment provides the Rate Sheet Adjustment Engine
// Applies bulk increase/decrease rules to a standardized rate deck
package adjustment

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"ratedeck/decision/comparison"
	rderrors "ratedeck/pkg/errors"
)

// Direction defines whether a rule raises or lowers rates
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// AdjustmentType defines how a rule's value is applied
type AdjustmentType string

const (
	TypePercentage AdjustmentType = "percentage"
	TypeFixed      AdjustmentType = "fixed"
)

// RatePrecision is the number of decimal places adjusted rates are rounded to
const RatePrecision = 6

// Rule defines one bulk adjustment.
// Empty Destinations means the rule applies to every record.
type Rule struct {
	Name         string         `yaml:"name" json:"name"`
	Direction    Direction      `yaml:"direction" json:"direction"`
	Type         AdjustmentType `yaml:"type" json:"type"`
	Value        float64        `yaml:"value" json:"value"`
	Destinations []string       `yaml:"destinations,omitempty" json:"destinations,omitempty"`
	MinRate      *float64       `yaml:"min_rate,omitempty" json:"minRate,omitempty"`
	MaxRate      *float64       `yaml:"max_rate,omitempty" json:"maxRate,omitempty"`
	Disabled     bool           `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Validate checks a rule for consistency
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return rderrors.NewInvalidRuleError("", "rule name is required")
	}
	switch r.Direction {
	case DirectionIncrease, DirectionDecrease:
	default:
		return rderrors.NewInvalidRuleError(r.Name, fmt.Sprintf("unknown direction %q", r.Direction))
	}
	switch r.Type {
	case TypePercentage, TypeFixed:
	default:
		return rderrors.NewInvalidRuleError(r.Name, fmt.Sprintf("unknown type %q", r.Type))
	}
	if !(r.Value > 0) {
		return rderrors.NewInvalidRuleError(r.Name, "value must be positive")
	}
	if r.Type == TypePercentage && r.Direction == DirectionDecrease && r.Value > 100 {
		return rderrors.NewInvalidRuleError(r.Name, "percentage decrease cannot exceed 100")
	}
	if r.MinRate != nil && r.MaxRate != nil && *r.MinRate > *r.MaxRate {
		return rderrors.NewInvalidRuleError(r.Name, "min_rate is greater than max_rate")
	}
	return nil
}

func (r Rule) matches(destName string) bool {
	if len(r.Destinations) == 0 {
		return true
	}
	for _, d := range r.Destinations {
		if strings.EqualFold(strings.TrimSpace(d), strings.TrimSpace(destName)) {
			return true
		}
	}
	return false
}

// RuleSet is the on-disk rule file layout
type RuleSet struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// ParseRules decodes a YAML rule set
func ParseRules(data []byte) ([]Rule, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return set.Rules, nil
}

// LoadRules reads a YAML rule file
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// AdjustedRecord is a record after rules were applied
type AdjustedRecord struct {
	comparison.StandardizedRecord
	OldRate float64 `json:"oldRate"`
	Rule    string  `json:"rule,omitempty"`
}

// Changed reports whether the rate moved
func (a AdjustedRecord) Changed() bool {
	return a.Rate != a.OldRate
}

// Result contains the adjusted deck and counters
type Result struct {
	Records   []AdjustedRecord `json:"records"`
	Adjusted  int              `json:"adjusted"`
	Unchanged int              `json:"unchanged"`
	ByRule    map[string]int   `json:"byRule"`
}

// Standardized returns the adjusted deck in comparison input form
func (r *Result) Standardized() []comparison.StandardizedRecord {
	out := make([]comparison.StandardizedRecord, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.StandardizedRecord
	}
	return out
}

// Engine applies adjustment rules to rate decks
type Engine struct {
	rules []Rule
}

// NewEngine validates rules and creates an engine
func NewEngine(rules []Rule) (*Engine, error) {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if !r.Disabled {
			active = append(active, r)
		}
	}
	return &Engine{rules: active}, nil
}

// Apply adjusts every record with the first enabled rule matching its
// destination. Records without a matching rule pass through unchanged.
func (e *Engine) Apply(records []comparison.StandardizedRecord) *Result {
	result := &Result{
		Records: make([]AdjustedRecord, 0, len(records)),
		ByRule:  make(map[string]int),
	}

	for _, rec := range records {
		adj := AdjustedRecord{StandardizedRecord: rec, OldRate: rec.Rate}

		for _, rule := range e.rules {
			if !rule.matches(rec.DestName) {
				continue
			}
			adj.Rate = AdjustRate(rec.Rate, rule)
			adj.Rule = rule.Name
			result.ByRule[rule.Name]++
			break
		}

		if adj.Changed() {
			result.Adjusted++
		} else {
			result.Unchanged++
		}
		result.Records = append(result.Records, adj)
	}

	return result
}

// AdjustRate applies a single rule to a rate. The result is rounded to
// RatePrecision places, never negative, and clamped to the rule's bounds.
func AdjustRate(rate float64, rule Rule) float64 {
	current := decimal.NewFromFloat(rate)
	value := decimal.NewFromFloat(rule.Value)

	var delta decimal.Decimal
	switch rule.Type {
	case TypePercentage:
		delta = current.Mul(value).Div(decimal.NewFromInt(100))
	default:
		delta = value
	}

	next := current.Add(delta)
	if rule.Direction == DirectionDecrease {
		next = current.Sub(delta)
	}

	next = next.Round(RatePrecision)
	if next.IsNegative() {
		next = decimal.Zero
	}
	if rule.MinRate != nil {
		if floor := decimal.NewFromFloat(*rule.MinRate); next.LessThan(floor) {
			next = floor
		}
	}
	if rule.MaxRate != nil {
		if ceiling := decimal.NewFromFloat(*rule.MaxRate); next.GreaterThan(ceiling) {
			next = ceiling
		}
	}

	return next.InexactFloat64()
}
