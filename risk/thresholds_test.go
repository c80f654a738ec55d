package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateThresholds(t *testing.T) {
	tests := []struct {
		name  string
		tp    string
		sl    string
		valid bool
		field string
	}{
		{"boundary accepted", "100", "99", true, ""},
		{"max tp accepted", "300", "10", true, ""},
		{"min tp accepted", "5", "1", true, ""},
		{"tiny sl accepted", "20", "0.5", true, ""},
		{"sl at 100", "50", "100", false, "sl_percent"},
		{"sl above 100", "50", "150", false, "sl_percent"},
		{"tp below minimum", "4.99", "10", false, "tp_percent"},
		{"tp unrealistic", "300.01", "10", false, "tp_percent"},
		{"tp missing", "0", "10", false, "tp_percent"},
		{"sl missing", "20", "0", false, "sl_percent"},
		{"negative sl", "20", "-1", false, "sl_percent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateThresholds(decimal.RequireFromString(tt.tp), decimal.RequireFromString(tt.sl))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidThreshold)
			var te *ThresholdError
			if assert.True(t, errors.As(err, &te)) {
				assert.Equal(t, tt.field, te.Field)
			}
		})
	}
}
