package domain

import "github.com/shopspring/decimal"

// FineRatePerDay is charged for every day a due date lies before the transaction day.
var FineRatePerDay = decimal.NewFromInt(5)

// ComputeFine returns max(0, today-due in days) * FineRatePerDay.
func ComputeFine(due, today Date) decimal.Decimal {
	days := today.DaysSince(due)
	if days <= 0 {
		return decimal.Zero
	}
	return FineRatePerDay.Mul(decimal.NewFromInt(int64(days)))
}
