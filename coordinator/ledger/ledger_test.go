package ledger

import (
	"testing"

	"github.com/ai4all-network/coordinator/shared/testutil/assert"
)

func TestToMicro(t *testing.T) {
	tests := []struct {
		tokens float64
		want   int64
	}{
		{tokens: 0, want: 0},
		{tokens: 1, want: 1_000_000},
		{tokens: 0.3333333333333333, want: 333_333},
		{tokens: 2333.3333333333335, want: 2_333_333_333},
		{tokens: 1.2345678, want: 1_234_568},
		{tokens: 0.25, want: 250_000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMicro(tt.tokens), "ToMicro(%v)", tt.tokens)
	}
}

func TestToTokens(t *testing.T) {
	assert.Equal(t, 1.0, ToTokens(1_000_000))
	assert.Equal(t, 0.333333, ToTokens(333_333))
}
