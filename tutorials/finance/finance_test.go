package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/testutil"
	"github.com/hupe1980/adkpatterns/model"
)

func TestCompoundInterest(t *testing.T) {
	annual := CompoundInterest(CompoundInterestArgs{Principal: 10000, AnnualRate: 0.06, Years: 5})
	assert.Equal(t, "success", annual["status"])
	assert.Equal(t, 1, annual["compounds_per_year"])
	assert.Equal(t, 13382.26, annual["final_amount"])
	assert.Equal(t, 3382.26, annual["interest_earned"])

	monthly := CompoundInterest(CompoundInterestArgs{Principal: 10000, AnnualRate: 0.06, Years: 5, CompoundsPerYear: 12})
	assert.Equal(t, 13488.5, monthly["final_amount"])
	assert.Equal(t, 3488.5, monthly["interest_earned"])
}

func TestLoanPayment(t *testing.T) {
	res := LoanPayment(LoanPaymentArgs{LoanAmount: 300000, AnnualRate: 0.045, Years: 30})
	assert.Equal(t, "success", res["status"])
	assert.Equal(t, 360, res["number_of_payments"])
	assert.Equal(t, 1520.06, res["monthly_payment"])
	assert.Equal(t, 547221.6, res["total_paid"])
	assert.Equal(t, 247221.6, res["total_interest"])

	zero := LoanPayment(LoanPaymentArgs{LoanAmount: 12000, AnnualRate: 0, Years: 1})
	assert.Equal(t, 1000.0, zero["monthly_payment"])
	assert.Equal(t, 0.0, zero["total_interest"])
}

func TestMonthlySavings(t *testing.T) {
	res := MonthlySavings(MonthlySavingsArgs{TargetAmount: 100000, Years: 10, AnnualReturn: 0.05})
	assert.Equal(t, "success", res["status"])
	assert.Equal(t, 643.99, res["monthly_savings"])
	assert.Equal(t, 77278.8, res["total_contributions"])
	assert.Equal(t, 22721.2, res["interest_earned"])

	flat := MonthlySavings(MonthlySavingsArgs{TargetAmount: 1200, Years: 1})
	assert.Equal(t, 100.0, flat["monthly_savings"])
}

func TestCalculators_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		res  map[string]any
		msg  string
	}{
		{"percent instead of decimal", CompoundInterest(CompoundInterestArgs{Principal: 1000, AnnualRate: 6, Years: 5}), "annual_rate must be between 0 and 1"},
		{"negative principal", CompoundInterest(CompoundInterestArgs{Principal: -1, AnnualRate: 0.06, Years: 5}), "principal must be positive"},
		{"negative compounding", CompoundInterest(CompoundInterestArgs{Principal: 1, AnnualRate: 0.06, Years: 5, CompoundsPerYear: -4}), "compounds_per_year"},
		{"zero term", LoanPayment(LoanPaymentArgs{LoanAmount: 1000, AnnualRate: 0.05}), "years must be positive"},
		{"negative rate", LoanPayment(LoanPaymentArgs{LoanAmount: 1000, AnnualRate: -0.01, Years: 1}), "annual_rate"},
		{"no target", MonthlySavings(MonthlySavingsArgs{Years: 1, AnnualReturn: 0.05}), "target_amount must be positive"},
		{"return above one", MonthlySavings(MonthlySavingsArgs{TargetAmount: 1, Years: 1, AnnualReturn: 1.5}), "annual_return"},
		{"loan shorter than a month", LoanPayment(LoanPaymentArgs{LoanAmount: 1000, AnnualRate: 0.05, Years: 0.01}), "at least one month"},
		{"interest-free loan shorter than a month", LoanPayment(LoanPaymentArgs{LoanAmount: 1000, Years: 0.01}), "at least one month"},
		{"savings shorter than a month", MonthlySavings(MonthlySavingsArgs{TargetAmount: 1000, Years: 0.01}), "at least one month"},
		{"NaN rate", LoanPayment(LoanPaymentArgs{LoanAmount: 1000, AnnualRate: math.NaN(), Years: 1}), "annual_rate must be a finite number"},
		{"infinite principal", CompoundInterest(CompoundInterestArgs{Principal: math.Inf(1), AnnualRate: 0.05, Years: 1}), "principal must be a finite number"},
		{"infinite term", MonthlySavings(MonthlySavingsArgs{TargetAmount: 1000, Years: math.Inf(1), AnnualReturn: 0.05}), "years must be a finite number"},
		{"compound overflow", CompoundInterest(CompoundInterestArgs{Principal: 1e300, AnnualRate: 1, Years: 1000}), "out of range"},
		{"loan total overflow", LoanPayment(LoanPaymentArgs{LoanAmount: 1e300, AnnualRate: 0.05, Years: 1e300}), "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "error", tt.res["status"])
			assert.Contains(t, tt.res["message"], tt.msg)
		})
	}
}

func TestNew_CallsCalculator(t *testing.T) {
	llm := model.NewScriptedModel("scripted",
		model.NewToolCallResponse(core.FunctionCall{
			ID:        "c1",
			Name:      LoanPaymentTool,
			Arguments: `{"loan_amount":300000,"annual_rate":"0.045","years":30}`,
		}),
		model.NewTextResponse("The monthly payment is about $1,520.06."),
	)

	root, err := New(model.StaticResolver(map[string]model.Model{ModelID: llm}))
	require.NoError(t, err)

	res := testutil.RunAgent(t, root, "What is the payment on a $300,000 mortgage at 4.5% for 30 years?")
	require.NoError(t, res.Err)
	assert.Equal(t, "The monthly payment is about $1,520.06.", res.FinalText())

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Instructions, "<OBJECTIVE_AND_PERSONA>")
	assert.True(t, reqs[0].HasTool(CompoundInterestTool))
	assert.True(t, reqs[0].HasTool(LoanPaymentTool))
	assert.True(t, reqs[0].HasTool(MonthlySavingsTool))

	var result map[string]any

	for _, c := range reqs[1].Contents {
		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok {
				result, _ = fr.FunctionResponse.Response.(map[string]any)
			}
		}
	}

	require.NotNil(t, result)
	assert.Equal(t, 1520.06, result["monthly_payment"])
}
