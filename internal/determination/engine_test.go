package determination

import (
	"errors"
	"testing"
)

func boolPtr(v bool) *bool { return &v }

func TestEvaluate_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		input   Input
		outcome string
		reason  string
	}{
		{
			name: "non-residential without construction intent is exempt",
			input: Input{
				Residential:   boolPtr(false),
				IntentToBuild: boolPtr(false),
			},
			outcome: OutcomeExempt,
			reason:  ReasonNonResidential,
		},
		{
			name: "non-residential rule wins regardless of other answers",
			input: Input{
				Residential:         boolPtr(false),
				IntentToBuild:       boolPtr(false),
				Financed:            boolPtr(true),
				LenderHasAMLProgram: boolPtr(false),
				BuyerType:           BuyerEntity,
				ExemptionCodes:      []string{CodeNone},
			},
			outcome: OutcomeExempt,
			reason:  ReasonNonResidential,
		},
		{
			name: "financed with AML lender is exempt",
			input: Input{
				Residential:         boolPtr(true),
				Financed:            boolPtr(true),
				LenderHasAMLProgram: boolPtr(true),
			},
			outcome: OutcomeExempt,
			reason:  ReasonLenderAML,
		},
		{
			name: "selected entity exemption code is exempt with that reason",
			input: Input{
				Residential:    boolPtr(true),
				Financed:       boolPtr(false),
				BuyerType:      BuyerEntity,
				ExemptionCodes: []string{"bank"},
			},
			outcome: OutcomeExempt,
			reason:  "bank",
		},
		{
			name: "individual death transfer is exempt",
			input: Input{
				Residential:    boolPtr(true),
				Financed:       boolPtr(false),
				BuyerType:      BuyerIndividual,
				ExemptionCodes: []string{"death_transfer"},
			},
			outcome: OutcomeExempt,
			reason:  "death_transfer",
		},
		{
			name: "explicit none selection is reportable",
			input: Input{
				Residential:    boolPtr(true),
				Financed:       boolPtr(false),
				BuyerType:      BuyerTrust,
				ExemptionCodes: []string{CodeNone},
			},
			outcome: OutcomeReportable,
		},
		{
			name: "code other than none wins over none in the same list",
			input: Input{
				Residential:    boolPtr(true),
				Financed:       boolPtr(false),
				BuyerType:      BuyerTrust,
				ExemptionCodes: []string{CodeNone, "statutory_trust"},
			},
			outcome: OutcomeExempt,
			reason:  "statutory_trust",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Evaluate(tt.input)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if result.Outcome != tt.outcome {
				t.Errorf("Outcome = %q, want %q", result.Outcome, tt.outcome)
			}
			if result.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.reason)
			}
		})
	}
}

func TestEvaluate_Incomplete(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{
			name:  "empty input resolves nothing",
			input: Input{},
		},
		{
			name: "empty code list is unanswered, not none",
			input: Input{
				Residential: boolPtr(true),
				Financed:    boolPtr(false),
				BuyerType:   BuyerEntity,
			},
		},
		{
			name: "non-residential without construction answer",
			input: Input{
				Residential: boolPtr(false),
				Financed:    boolPtr(false),
			},
		},
		{
			name: "financed without lender AML answer",
			input: Input{
				Residential: boolPtr(true),
				Financed:    boolPtr(true),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Evaluate(tt.input)
			if result != nil {
				t.Fatalf("Evaluate() = %+v, want nil result", result)
			}
			var incomplete *IncompleteError
			if !errors.As(err, &incomplete) {
				t.Fatalf("Evaluate() error = %v, want IncompleteError", err)
			}
			if len(incomplete.Missing) == 0 {
				t.Error("IncompleteError.Missing is empty")
			}
		})
	}
}

func TestEvaluate_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		field string
	}{
		{
			name: "unknown buyer type with codes",
			input: Input{
				BuyerType:      "partnership",
				ExemptionCodes: []string{CodeNone},
			},
			field: "buyer_type",
		},
		{
			name: "individual code on entity buyer",
			input: Input{
				BuyerType:      BuyerEntity,
				ExemptionCodes: []string{"death_transfer"},
			},
			field: "exemption_codes",
		},
		{
			name: "unknown code",
			input: Input{
				BuyerType:      BuyerIndividual,
				ExemptionCodes: []string{"foreclosure"},
			},
			field: "exemption_codes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.input)
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("Evaluate() error = %v, want InvalidInputError", err)
			}
			if invalid.Field != tt.field {
				t.Errorf("Field = %q, want %q", invalid.Field, tt.field)
			}
		})
	}
}

// Identical input must yield identical output no matter how often it runs.
func TestEvaluate_Deterministic(t *testing.T) {
	input := Input{
		Residential:    boolPtr(true),
		Financed:       boolPtr(false),
		BuyerType:      BuyerEntity,
		ExemptionCodes: []string{"credit_union"},
	}

	first, err := Evaluate(input)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Evaluate(input)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if again.Outcome != first.Outcome || again.Reason != first.Reason {
			t.Fatalf("Evaluate() run %d = %+v, first run = %+v", i, again, first)
		}
	}
}
