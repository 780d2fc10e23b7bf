package catalog

import (
	"fmt"
	"strings"

	"salonbook/internal/model"

	"gopkg.in/yaml.v3"
)

// Price is a service price. Add-ons are Additive ("+5") and may carry an
// upper bound ("+5~15").
type Price struct {
	Amount   model.Money
	Upper    model.Money
	Additive bool
}

// ParsePrice parses "30", "30.50", "+5" and "+5~15".
func ParsePrice(s string) (Price, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Price{}, fmt.Errorf("empty price")
	}

	var p Price
	if strings.HasPrefix(raw, "+") {
		p.Additive = true
		raw = strings.TrimSpace(raw[1:])
	}

	lo, hi, ranged := strings.Cut(raw, "~")
	amount, err := model.ParseMoney(lo)
	if err != nil {
		return Price{}, fmt.Errorf("price %q: %w", s, err)
	}
	p.Amount = amount
	p.Upper = amount

	if ranged {
		if !p.Additive {
			return Price{}, fmt.Errorf("price %q: ranges are only allowed for add-ons", s)
		}
		upper, err := model.ParseMoney(hi)
		if err != nil {
			return Price{}, fmt.Errorf("price %q: %w", s, err)
		}
		if upper < amount {
			return Price{}, fmt.Errorf("price %q: upper bound below lower bound", s)
		}
		p.Upper = upper
	}
	return p, nil
}

// MustParsePrice panics on malformed input. Used for built-in data.
func MustParsePrice(s string) Price {
	p, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

// TotalContribution is what the price adds to a running total: the lower bound.
func (p Price) TotalContribution() model.Money {
	return p.Amount
}

// IsRange reports whether the price has distinct bounds.
func (p Price) IsRange() bool {
	return p.Upper > p.Amount
}

func (p Price) String() string {
	prefix := ""
	if p.Additive {
		prefix = "+"
	}
	if p.IsRange() {
		return fmt.Sprintf("%s%s~%s", prefix, p.Amount, p.Upper)
	}
	return prefix + p.Amount.String()
}

// MarshalYAML writes the price in its text form.
func (p Price) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// UnmarshalYAML accepts both numbers and strings.
func (p *Price) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price must be a scalar", value.Line)
	}
	parsed, err := ParsePrice(value.Value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText lets encoding/json render the price as "+5~15".
func (p Price) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
