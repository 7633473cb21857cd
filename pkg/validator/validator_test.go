package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Kind   string          `binding:"required,oneof=deposit withdrawal"`
	Amount decimal.Decimal `binding:"positive_decimal"`
	Raw    string          `binding:"omitempty,decimal"`
}

func TestStruct(t *testing.T) {
	ok := sample{Kind: "deposit", Amount: decimal.RequireFromString("20.00"), Raw: "1.5"}
	require.NoError(t, Struct(ok))

	bad := sample{Kind: "refund", Amount: decimal.Zero, Raw: "abc"}
	err := Struct(bad)
	require.Error(t, err)

	msg := GetErrorMsg(err)
	assert.Contains(t, msg, "Kind must be one of [deposit withdrawal]")
	assert.Contains(t, msg, "Amount must be a positive decimal")
	assert.Contains(t, msg, "Raw must be a decimal")
}
