package finance

import (
	"fmt"
	"math"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/tool"
)

const (
	CompoundInterestTool = "calculate_compound_interest"
	LoanPaymentTool      = "calculate_loan_payment"
	MonthlySavingsTool   = "calculate_monthly_savings"
)

// CompoundInterestArgs are the inputs of calculate_compound_interest.
type CompoundInterestArgs struct {
	Principal        float64 `json:"principal" jsonschema:"required,description=Initial investment amount"`
	AnnualRate       float64 `json:"annual_rate" jsonschema:"required,description=Annual interest rate as a decimal (0.06 for 6%)"`
	Years            float64 `json:"years" jsonschema:"required,description=Investment horizon in years"`
	CompoundsPerYear int     `json:"compounds_per_year,omitempty" jsonschema:"description=Compounding periods per year (default 1)"`
}

// LoanPaymentArgs are the inputs of calculate_loan_payment.
type LoanPaymentArgs struct {
	LoanAmount float64 `json:"loan_amount" jsonschema:"required,description=Amount borrowed"`
	AnnualRate float64 `json:"annual_rate" jsonschema:"required,description=Annual interest rate as a decimal (0.045 for 4.5%)"`
	Years      float64 `json:"years" jsonschema:"required,description=Loan term in years"`
}

// MonthlySavingsArgs are the inputs of calculate_monthly_savings.
type MonthlySavingsArgs struct {
	TargetAmount float64 `json:"target_amount" jsonschema:"required,description=Amount to reach"`
	Years        float64 `json:"years" jsonschema:"required,description=Years until the target date"`
	AnnualReturn float64 `json:"annual_return" jsonschema:"required,description=Expected annual return as a decimal (0.05 for 5%)"`
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func failure(format string, args ...any) map[string]any {
	return map[string]any{"status": "error", "message": fmt.Sprintf(format, args...)}
}

type field struct {
	name  string
	value float64
}

func checkFinite(fields ...field) (map[string]any, bool) {
	for _, f := range fields {
		if nonFinite(f.value) {
			return failure("%s must be a finite number.", f.name), false
		}
	}

	return nil, true
}

// checkMonths converts years to whole monthly periods; terms shorter than
// half a month have no payment schedule.
func checkMonths(years float64) (float64, map[string]any, bool) {
	if years <= 0 {
		return 0, failure("years must be positive, got %g", years), false
	}

	months := math.Round(years * 12)
	if months < 1 {
		return 0, failure("years must cover at least one month, got %g", years), false
	}

	return months, nil, true
}

func nonFinite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}

	return false
}

func outOfRange() map[string]any {
	return failure("result is out of range; try a smaller amount or a shorter term.")
}

func checkRate(name string, rate float64) (map[string]any, bool) {
	if rate < 0 || rate > 1 || math.IsNaN(rate) {
		return failure("%s must be between 0 and 1; try 0.06 for 6%%.", name), false
	}

	return nil, true
}

// CompoundInterest computes principal*(1+r/n)^(n*years).
func CompoundInterest(args CompoundInterestArgs) map[string]any {
	if res, ok := checkFinite(
		field{"principal", args.Principal}, field{"annual_rate", args.AnnualRate}, field{"years", args.Years},
	); !ok {
		return res
	}

	if args.Principal <= 0 {
		return failure("principal must be positive, got %.2f", args.Principal)
	}

	if res, ok := checkRate("annual_rate", args.AnnualRate); !ok {
		return res
	}

	if args.Years <= 0 {
		return failure("years must be positive, got %g", args.Years)
	}

	n := args.CompoundsPerYear
	if n == 0 {
		n = 1
	}

	if n < 0 {
		return failure("compounds_per_year must be at least 1, got %d", n)
	}

	final := args.Principal * math.Pow(1+args.AnnualRate/float64(n), float64(n)*args.Years)
	if nonFinite(final) {
		return outOfRange()
	}

	return map[string]any{
		"status":             "success",
		"principal":          round2(args.Principal),
		"annual_rate":        args.AnnualRate,
		"years":              args.Years,
		"compounds_per_year": n,
		"final_amount":       round2(final),
		"interest_earned":    round2(final - args.Principal),
	}
}

// LoanPayment computes the fixed monthly payment of an amortized loan.
// Totals are based on the rounded payment.
func LoanPayment(args LoanPaymentArgs) map[string]any {
	if res, ok := checkFinite(
		field{"loan_amount", args.LoanAmount}, field{"annual_rate", args.AnnualRate}, field{"years", args.Years},
	); !ok {
		return res
	}

	if args.LoanAmount <= 0 {
		return failure("loan_amount must be positive, got %.2f", args.LoanAmount)
	}

	if res, ok := checkRate("annual_rate", args.AnnualRate); !ok {
		return res
	}

	months, res, ok := checkMonths(args.Years)
	if !ok {
		return res
	}

	r := args.AnnualRate / 12

	var payment float64
	if r == 0 {
		payment = args.LoanAmount / months
	} else {
		payment = args.LoanAmount * r / (1 - math.Pow(1+r, -months))
	}

	if nonFinite(payment, payment*months) {
		return outOfRange()
	}

	payment = round2(payment)
	total := round2(payment * months)

	return map[string]any{
		"status":             "success",
		"loan_amount":        round2(args.LoanAmount),
		"annual_rate":        args.AnnualRate,
		"years":              args.Years,
		"number_of_payments": int(months),
		"monthly_payment":    payment,
		"total_paid":         total,
		"total_interest":     round2(total - args.LoanAmount),
	}
}

// MonthlySavings computes the monthly deposit that grows to the target with
// monthly compounding.
func MonthlySavings(args MonthlySavingsArgs) map[string]any {
	if res, ok := checkFinite(
		field{"target_amount", args.TargetAmount}, field{"years", args.Years}, field{"annual_return", args.AnnualReturn},
	); !ok {
		return res
	}

	if args.TargetAmount <= 0 {
		return failure("target_amount must be positive, got %.2f", args.TargetAmount)
	}

	months, res, ok := checkMonths(args.Years)
	if !ok {
		return res
	}

	if res, ok := checkRate("annual_return", args.AnnualReturn); !ok {
		return res
	}

	r := args.AnnualReturn / 12

	var deposit float64
	if r == 0 {
		deposit = args.TargetAmount / months
	} else {
		deposit = args.TargetAmount * r / (math.Pow(1+r, months) - 1)
	}

	if nonFinite(deposit, deposit*months) {
		return outOfRange()
	}

	deposit = round2(deposit)
	contributions := round2(deposit * months)

	return map[string]any{
		"status":              "success",
		"target_amount":       round2(args.TargetAmount),
		"years":               args.Years,
		"annual_return":       args.AnnualReturn,
		"monthly_savings":     deposit,
		"total_contributions": contributions,
		"interest_earned":     round2(args.TargetAmount - contributions),
	}
}

// Tools returns the three calculators.
func Tools() ([]tool.Tool, error) {
	compound, err := tool.NewTypedTool[CompoundInterestArgs](CompoundInterestTool,
		"Calculate compound interest growth of an investment.",
		func(_ *core.ToolContext, args CompoundInterestArgs) (any, error) { return CompoundInterest(args), nil })
	if err != nil {
		return nil, err
	}

	loan, err := tool.NewTypedTool[LoanPaymentArgs](LoanPaymentTool,
		"Calculate the monthly payment, total paid and total interest of a loan.",
		func(_ *core.ToolContext, args LoanPaymentArgs) (any, error) { return LoanPayment(args), nil })
	if err != nil {
		return nil, err
	}

	savings, err := tool.NewTypedTool[MonthlySavingsArgs](MonthlySavingsTool,
		"Calculate the monthly savings needed to reach a target amount.",
		func(_ *core.ToolContext, args MonthlySavingsArgs) (any, error) { return MonthlySavings(args), nil })
	if err != nil {
		return nil, err
	}

	return []tool.Tool{compound, loan, savings}, nil
}
