package service

import (
	"strings"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/shopspring/decimal"
)

// parseDecimal parses an operator-supplied amount or rate.
func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Field: field, Value: s, Reason: "not a decimal number"}
	}
	return d, nil
}
