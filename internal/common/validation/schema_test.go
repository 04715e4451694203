package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

var donationSchema = JSONSchema{
	Type: "object",
	Properties: map[string]Property{
		"donationId": {Type: "string"},
		"memberId":   {Type: "string"},
		"amount":     {Type: "number", Minimum: floatPtr(0.01)},
		"channel":    {Type: "string", Enum: []string{"email", "sms"}},
		"recipient": {
			Type:       "object",
			Properties: map[string]Property{"email": {Type: "string"}},
			Required:   []string{"email"},
		},
	},
	Required: []string{"donationId", "memberId", "amount"},
}

func TestValidateInput_Valid(t *testing.T) {
	res := ValidateInput(map[string]interface{}{
		"donationId": "d-1",
		"memberId":   "m-1",
		"amount":     250,
	}, donationSchema)

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidateInput_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     map[string]interface{}
		wantField string
		wantCode  string
	}{
		{"missing required", map[string]interface{}{"donationId": "d", "amount": 5.0}, "memberId", "REQUIRED_FIELD_MISSING"},
		{"wrong type", map[string]interface{}{"donationId": "d", "memberId": 7, "amount": 5.0}, "memberId", "INVALID_TYPE"},
		{"below minimum", map[string]interface{}{"donationId": "d", "memberId": "m", "amount": 0.0}, "amount", "MINIMUM_VIOLATION"},
		{"bad enum", map[string]interface{}{"donationId": "d", "memberId": "m", "amount": 1.0, "channel": "fax"}, "channel", "INVALID_ENUM_VALUE"},
		{"extra field", map[string]interface{}{"donationId": "d", "memberId": "m", "amount": 1.0, "coupon": "x"}, "coupon", "EXTRA_FIELD"},
		{
			"nested required",
			map[string]interface{}{"donationId": "d", "memberId": "m", "amount": 1.0, "recipient": map[string]interface{}{}},
			"recipient.email",
			"REQUIRED_FIELD_MISSING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateInput(tt.input, donationSchema)
			require.False(t, res.Valid)
			assert.True(t, res.HasErrors(tt.wantField), "errors: %v", res.GetErrorMessages())
			assert.Equal(t, tt.wantCode, res.Errors[0].Code)
		})
	}
}

func TestValidateEmailAndPhone(t *testing.T) {
	assert.True(t, ValidateEmail("ada@example.org"))
	assert.False(t, ValidateEmail("ada@"))
	assert.True(t, ValidatePhone("+1 (404) 555-0100"))
	assert.False(t, ValidatePhone("555"))
}
