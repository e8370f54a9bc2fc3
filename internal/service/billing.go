package service

import (
	"fmt"

	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/model"
)

const discountDescription = "Second lesson discount"

// rateFor returns the per-session rate for a student grade. Grades inside the
// senior band pay the senior rate, everything else (including unknown) the
// junior rate.
func rateFor(b config.Billing, grade int) int64 {
	if grade >= b.SeniorGradeMin && grade <= b.SeniorGradeMax {
		return b.SeniorRateCents
	}
	return b.JuniorRateCents
}

// discountLines returns floor(n/2) discount lines for a parent with n lesson
// lines. The count alone decides; siblings and multi-subject enrolments are
// treated the same.
func discountLines(b config.Billing, n, weeks int) []model.LineItem {
	pairs := n / 2
	if pairs == 0 {
		return nil
	}
	lines := make([]model.LineItem, 0, pairs)
	for i := 0; i < pairs; i++ {
		lines = append(lines, model.NewLineItem(discountDescription, weeks, b.DiscountCents))
	}
	return lines
}

// FormatCents renders an amount of cents as dollars, e.g. "$1200.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
