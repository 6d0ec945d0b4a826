// Package determination implements the reportability decision over a
// structured input record. Evaluation is pure: no state is read or written,
// and identical input always yields identical output. Certificate issuance
// and report status changes belong to the workflow engine.
package determination

import (
	"fmt"
	"strings"
)

// Buyer types
const (
	BuyerIndividual = "individual"
	BuyerEntity     = "entity"
	BuyerTrust      = "trust"
)

// CodeNone is the explicit "no exemption applies" selection. An empty
// selection list is an unanswered question, not a "none".
const CodeNone = "none"

// exemptionCodes lists the valid selections per buyer type
var exemptionCodes = map[string]map[string]bool{
	BuyerIndividual: {
		CodeNone:              true,
		"no_consideration":    true,
		"death_transfer":      true,
		"divorce_transfer":    true,
		"bankruptcy_transfer": true,
	},
	BuyerEntity: {
		CodeNone:                        true,
		"securities_reporting_issuer":   true,
		"government_authority":          true,
		"bank":                          true,
		"credit_union":                  true,
		"insurance_company":             true,
		"registered_investment_company": true,
		"public_utility":                true,
	},
	BuyerTrust: {
		CodeNone:                  true,
		"statutory_trust":         true,
		"trust_securities_issuer": true,
	},
}

// Input is the structured determination record. Pointer flags distinguish
// "answered false" from "not answered"; a nil or empty code list means no
// selection was made.
type Input struct {
	Residential         *bool
	IntentToBuild       *bool
	Financed            *bool
	LenderHasAMLProgram *bool
	BuyerType           string
	ExemptionCodes      []string
}

// Result is a resolved determination
type Result struct {
	Outcome string // "exempt" or "reportable"
	Reason  string // exemption reason, empty when reportable
}

// Exemption reasons for the flag-driven rules
const (
	ReasonNonResidential = "non_residential_no_construction"
	ReasonLenderAML      = "lender_aml_program"
)

// Outcomes
const (
	OutcomeExempt     = "exempt"
	OutcomeReportable = "reportable"
)

// IncompleteError reports that the input does not resolve to either outcome.
// Silently defaulting either way is unacceptable, so the caller must collect
// the missing answers and re-evaluate.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("determination incomplete: unresolved fields: %s", strings.Join(e.Missing, ", "))
}

// Evaluate resolves the determination in fixed rule order:
//
//  1. non-residential with no intent to build -> exempt
//  2. lender has an AML program -> exempt
//  3. a buyer-type exemption code other than "none" selected -> exempt
//  4. "none" explicitly selected -> reportable
//
// Anything else fails with IncompleteError. Unknown buyer types or codes
// fail with InvalidInputError before any rule is applied.
func Evaluate(in Input) (*Result, error) {
	if err := validateCodes(in); err != nil {
		return nil, err
	}

	// Rule 1: non-residential, no intent to build residential structures
	if in.Residential != nil && !*in.Residential {
		if in.IntentToBuild != nil && !*in.IntentToBuild {
			return &Result{Outcome: OutcomeExempt, Reason: ReasonNonResidential}, nil
		}
	}

	// Rule 2: financed transfer where the lender runs an AML program
	if in.Financed != nil && *in.Financed {
		if in.LenderHasAMLProgram != nil && *in.LenderHasAMLProgram {
			return &Result{Outcome: OutcomeExempt, Reason: ReasonLenderAML}, nil
		}
	}

	// Rule 3: any selected exemption code other than "none"
	for _, code := range in.ExemptionCodes {
		if code != CodeNone {
			return &Result{Outcome: OutcomeExempt, Reason: code}, nil
		}
	}

	// Rule 4: "none" explicitly selected means reportable
	for _, code := range in.ExemptionCodes {
		if code == CodeNone {
			return &Result{Outcome: OutcomeReportable}, nil
		}
	}

	return nil, &IncompleteError{Missing: unresolvedFields(in)}
}

// InvalidInputError reports a structurally invalid input (unknown buyer type
// or a code that does not belong to the declared buyer type)
type InvalidInputError struct {
	Field string
	Value string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid determination input: %s=%q", e.Field, e.Value)
}

func validateCodes(in Input) error {
	if len(in.ExemptionCodes) == 0 {
		return nil
	}

	valid, ok := exemptionCodes[in.BuyerType]
	if !ok {
		return &InvalidInputError{Field: "buyer_type", Value: in.BuyerType}
	}

	for _, code := range in.ExemptionCodes {
		if !valid[code] {
			return &InvalidInputError{Field: "exemption_codes", Value: code}
		}
	}

	return nil
}

func unresolvedFields(in Input) []string {
	var missing []string
	if in.Residential == nil {
		missing = append(missing, "residential")
	} else if !*in.Residential && in.IntentToBuild == nil {
		missing = append(missing, "intent_to_build")
	}
	if in.Financed == nil {
		missing = append(missing, "financed")
	} else if *in.Financed && in.LenderHasAMLProgram == nil {
		missing = append(missing, "lender_aml_program")
	}
	if in.BuyerType == "" {
		missing = append(missing, "buyer_type")
	}
	if len(in.ExemptionCodes) == 0 {
		missing = append(missing, "exemption_codes")
	}
	if len(missing) == 0 {
		// Answered but contradictory (for example residential with intent
		// flags only); the selection list is what failed to resolve.
		missing = append(missing, "exemption_codes")
	}
	return missing
}
