package library

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoolBitDecoding(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`0`, false},
		{`1`, true},
		{`"0"`, false},
		{`"1"`, true},
		{`false`, false},
		{`true`, true},
		{`null`, false},
	}
	for _, tt := range tests {
		var b BoolBit
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &b), "raw %s", tt.raw)
		assert.Equal(t, tt.want, bool(b), "raw %s", tt.raw)
	}

	var b BoolBit
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &b))
}

func TestBoolBitEncodesAsBit(t *testing.T) {
	raw, err := json.Marshal(map[string]BoolBit{"available": true, "is_active": false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"available":1,"is_active":0}`, string(raw))
}

func TestLoanOpen(t *testing.T) {
	// All three shapes the backend emits for an unreturned loan must count
	// as open: missing field, JSON null, and empty string.
	for _, raw := range []string{
		`{"id":1,"book_id":2,"checkout_date":"2026-01-01"}`,
		`{"id":1,"book_id":2,"checkout_date":"2026-01-01","return_date":null}`,
		`{"id":1,"book_id":2,"checkout_date":"2026-01-01","return_date":""}`,
	} {
		var l Loan
		require.NoError(t, json.Unmarshal([]byte(raw), &l), "raw %s", raw)
		assert.True(t, l.Open(), "raw %s", raw)
	}

	var closed Loan
	require.NoError(t, json.Unmarshal(
		[]byte(`{"id":1,"book_id":2,"checkout_date":"2026-01-01","return_date":"2026-01-09"}`), &closed))
	assert.False(t, closed.Open())
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"admin", "librarian", "member"} {
		role, err := ParseRole(valid)
		require.NoError(t, err)
		assert.Equal(t, Role(valid), role)
	}
	for _, invalid := range []string{"", "Admin", "superuser"} {
		_, err := ParseRole(invalid)
		assert.Error(t, err, "input %q", invalid)
	}
}
