package party

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferdesk/transferdesk/internal/apperr"
	"github.com/transferdesk/transferdesk/internal/domain/entity"
)

func validIndividual() map[string]interface{} {
	return map[string]interface{}{
		"legal_name":          "Jordan Blake",
		"date_of_birth":       "1984-07-12",
		"residential_address": "12 Oak Lane, Springfield IL",
		"tax_id":              "123-45-6789",
		"citizenship":         "US",
	}
}

func validEntity() map[string]interface{} {
	return map[string]interface{}{
		"legal_name":        "Acme Holdings LLC",
		"principal_address": "500 State St, Chicago IL",
		"tax_id":            "12-3456789",
		"beneficial_owners": []map[string]interface{}{
			{
				"full_name":           "Morgan Reyes",
				"residential_address": "44 Pine Ave, Chicago IL",
				"tax_id":              "987-65-4321",
				"ownership_percent":   40.0,
			},
		},
	}
}

func validTrust() map[string]interface{} {
	return map[string]interface{}{
		"trust_name":      "Blake Family Trust",
		"trustee_name":    "Jordan Blake",
		"trustee_address": "12 Oak Lane, Springfield IL",
		"tax_id":          "12-3456789",
		"revocable":       true,
	}
}

func marshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestValidatePayload_AcceptsValidPayloads(t *testing.T) {
	assert.NoError(t, ValidatePayload(entity.PartyKindIndividual, marshal(t, validIndividual())))
	assert.NoError(t, ValidatePayload(entity.PartyKindEntity, marshal(t, validEntity())))
	assert.NoError(t, ValidatePayload(entity.PartyKindTrust, marshal(t, validTrust())))
}

func TestValidatePayload_TaxIDFormats(t *testing.T) {
	t.Run("SSN without dashes accepted", func(t *testing.T) {
		p := validIndividual()
		p["tax_id"] = "123456789"
		assert.NoError(t, ValidatePayload(entity.PartyKindIndividual, marshal(t, p)))
	})

	t.Run("malformed SSN rejected", func(t *testing.T) {
		p := validIndividual()
		p["tax_id"] = "12-345-6789"
		err := ValidatePayload(entity.PartyKindIndividual, marshal(t, p))
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("EIN without dash accepted", func(t *testing.T) {
		p := validEntity()
		p["tax_id"] = "123456789"
		assert.NoError(t, ValidatePayload(entity.PartyKindEntity, marshal(t, p)))
	})

	t.Run("SSN-shaped EIN rejected", func(t *testing.T) {
		p := validEntity()
		p["tax_id"] = "123-45-6789"
		err := ValidatePayload(entity.PartyKindEntity, marshal(t, p))
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestValidatePayload_MissingFieldsAreNamed(t *testing.T) {
	p := validIndividual()
	delete(p, "legal_name")
	delete(p, "citizenship")

	err := ValidatePayload(entity.PartyKindIndividual, marshal(t, p))
	require.Error(t, err)

	var v *apperr.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Contains(t, v.Fields, "legal_name")
	assert.Contains(t, v.Fields, "citizenship")
}

func TestValidatePayload_BeneficialOwners(t *testing.T) {
	t.Run("entity without owners rejected", func(t *testing.T) {
		p := validEntity()
		p["beneficial_owners"] = []map[string]interface{}{}
		err := ValidatePayload(entity.PartyKindEntity, marshal(t, p))
		var v *apperr.ValidationError
		require.ErrorAs(t, err, &v)
		assert.Contains(t, v.Fields, "beneficial_owners")
	})

	t.Run("owner without stake or control rejected", func(t *testing.T) {
		p := validEntity()
		p["beneficial_owners"] = []map[string]interface{}{
			{
				"full_name":           "Morgan Reyes",
				"residential_address": "44 Pine Ave, Chicago IL",
				"tax_id":              "987-65-4321",
				"ownership_percent":   0.0,
			},
		}
		err := ValidatePayload(entity.PartyKindEntity, marshal(t, p))
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("substantial control without ownership accepted", func(t *testing.T) {
		p := validEntity()
		p["beneficial_owners"] = []map[string]interface{}{
			{
				"full_name":           "Morgan Reyes",
				"residential_address": "44 Pine Ave, Chicago IL",
				"tax_id":              "987-65-4321",
				"substantial_control": true,
			},
		}
		assert.NoError(t, ValidatePayload(entity.PartyKindEntity, marshal(t, p)))
	})
}

func TestValidatePayload_TrustRevocableIsRequired(t *testing.T) {
	p := validTrust()
	delete(p, "revocable")

	err := ValidatePayload(entity.PartyKindTrust, marshal(t, p))
	var v *apperr.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Contains(t, v.Fields, "revocable")

	// Explicit false is an answer, not a missing field.
	p["revocable"] = false
	assert.NoError(t, ValidatePayload(entity.PartyKindTrust, marshal(t, p)))
}

func TestValidatePayload_WrongKindSchemaRejected(t *testing.T) {
	// An individual payload does not satisfy the entity schema.
	err := ValidatePayload(entity.PartyKindEntity, marshal(t, validIndividual()))
	assert.True(t, apperr.IsValidation(err))

	err = ValidatePayload("partnership", marshal(t, validIndividual()))
	assert.True(t, apperr.IsValidation(err))
}

func TestValidatePayload_MalformedJSON(t *testing.T) {
	err := ValidatePayload(entity.PartyKindIndividual, json.RawMessage(`{"legal_name": `))
	assert.True(t, apperr.IsValidation(err))
}

func TestNewToken_UniqueAndOpaque(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok := NewToken()
		assert.Len(t, tok, 64)
		assert.False(t, seen[tok], "token collision")
		seen[tok] = true
	}
}
