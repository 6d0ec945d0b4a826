package party

import (
	"encoding/json"

	"github.com/transferdesk/transferdesk/internal/apperr"
	"github.com/transferdesk/transferdesk/internal/domain/entity"
	"github.com/transferdesk/transferdesk/pkg/utils"
)

// IndividualPayload is the submission schema for individual parties
type IndividualPayload struct {
	LegalName          string `json:"legal_name"`
	DateOfBirth        string `json:"date_of_birth"`
	ResidentialAddress string `json:"residential_address"`
	TaxID              string `json:"tax_id"`
	Citizenship        string `json:"citizenship"`
}

// BeneficialOwner is one individual owning or controlling an entity party
type BeneficialOwner struct {
	FullName           string  `json:"full_name"`
	ResidentialAddress string  `json:"residential_address"`
	TaxID              string  `json:"tax_id"`
	OwnershipPercent   float64 `json:"ownership_percent"`
	SubstantialControl bool    `json:"substantial_control"`
}

// EntityPayload is the submission schema for entity parties
type EntityPayload struct {
	LegalName        string            `json:"legal_name"`
	PrincipalAddress string            `json:"principal_address"`
	TaxID            string            `json:"tax_id"`
	BeneficialOwners []BeneficialOwner `json:"beneficial_owners"`
}

// TrustPayload is the submission schema for trust parties
type TrustPayload struct {
	TrustName      string `json:"trust_name"`
	TrusteeName    string `json:"trustee_name"`
	TrusteeAddress string `json:"trustee_address"`
	TaxID          string `json:"tax_id"`
	Revocable      *bool  `json:"revocable"`
}

// ValidatePayload checks a raw submission payload against the schema for the
// party's declared kind, returning field-level errors
func ValidatePayload(kind string, raw json.RawMessage) error {
	switch kind {
	case entity.PartyKindIndividual:
		return validateIndividual(raw)
	case entity.PartyKindEntity:
		return validateEntity(raw)
	case entity.PartyKindTrust:
		return validateTrust(raw)
	default:
		return apperr.NewValidation("unknown party kind", "kind")
	}
}

func validateIndividual(raw json.RawMessage) error {
	var p IndividualPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return apperr.NewValidation("malformed payload", "payload")
	}

	var missing []string
	if p.LegalName == "" {
		missing = append(missing, "legal_name")
	}
	if p.DateOfBirth == "" {
		missing = append(missing, "date_of_birth")
	}
	if p.ResidentialAddress == "" {
		missing = append(missing, "residential_address")
	}
	if p.Citizenship == "" {
		missing = append(missing, "citizenship")
	}
	if p.TaxID == "" {
		missing = append(missing, "tax_id")
	} else if err := utils.ValidateSSN(p.TaxID); err != nil {
		return apperr.NewValidation("invalid tax_id", "tax_id")
	}

	if len(missing) > 0 {
		return apperr.NewValidation("missing required fields", missing...)
	}
	return nil
}

func validateEntity(raw json.RawMessage) error {
	var p EntityPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return apperr.NewValidation("malformed payload", "payload")
	}

	var missing []string
	if p.LegalName == "" {
		missing = append(missing, "legal_name")
	}
	if p.PrincipalAddress == "" {
		missing = append(missing, "principal_address")
	}
	if p.TaxID == "" {
		missing = append(missing, "tax_id")
	} else if err := utils.ValidateEIN(p.TaxID); err != nil {
		return apperr.NewValidation("invalid tax_id", "tax_id")
	}
	if len(p.BeneficialOwners) == 0 {
		missing = append(missing, "beneficial_owners")
	}
	if len(missing) > 0 {
		return apperr.NewValidation("missing required fields", missing...)
	}

	for _, bo := range p.BeneficialOwners {
		if bo.FullName == "" || bo.ResidentialAddress == "" || bo.TaxID == "" {
			return apperr.NewValidation("incomplete beneficial owner",
				"beneficial_owners.full_name", "beneficial_owners.residential_address", "beneficial_owners.tax_id")
		}
		if !bo.SubstantialControl && (bo.OwnershipPercent <= 0 || bo.OwnershipPercent > 100) {
			return apperr.NewValidation("beneficial owner needs ownership_percent in (0,100] or substantial_control",
				"beneficial_owners.ownership_percent")
		}
	}

	return nil
}

func validateTrust(raw json.RawMessage) error {
	var p TrustPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return apperr.NewValidation("malformed payload", "payload")
	}

	var missing []string
	if p.TrustName == "" {
		missing = append(missing, "trust_name")
	}
	if p.TrusteeName == "" {
		missing = append(missing, "trustee_name")
	}
	if p.TrusteeAddress == "" {
		missing = append(missing, "trustee_address")
	}
	if p.TaxID == "" {
		missing = append(missing, "tax_id")
	}
	if p.Revocable == nil {
		missing = append(missing, "revocable")
	}

	if len(missing) > 0 {
		return apperr.NewValidation("missing required fields", missing...)
	}
	return nil
}
