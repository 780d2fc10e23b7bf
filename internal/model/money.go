package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in cents.
type Money int64

// Dollars builds a Money value from whole units.
func Dollars(n int64) Money {
	return Money(n * 100)
}

// ParseMoney parses "30", "30.5" or "30.50".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	cents := int64(0)
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		if len(frac) == 1 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || cents < 0 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	return Money(units*100 + cents), nil
}

// Float returns the amount in whole units.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String renders whole amounts without decimals ("35") and others with two ("35.50").
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	if v%100 == 0 {
		return fmt.Sprintf("%s%d", sign, v/100)
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
