package hashutil_test

import (
	"math"
	"testing"

	"github.com/ai4all-network/coordinator/shared/hashutil"
	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func TestHashHex_KnownVectors(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hashutil.HashHex(nil))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hashutil.HashHex([]byte{}))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hashutil.HashHex([]byte("abc")))
}

func TestCanonical_SortsKeysAtEveryLevel(t *testing.T) {
	obj := map[string]interface{}{
		"zeta": 1,
		"alpha": map[string]interface{}{
			"nested":  true,
			"another": "x",
		},
		"mid": []interface{}{map[string]interface{}{"b": 2, "a": 1}},
	}
	b, err := hashutil.Canonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"another":"x","nested":true},"mid":[{"a":1,"b":2}],"zeta":1}`, string(b))
}

func TestCanonical_Numbers(t *testing.T) {
	// Summed at runtime so the addition really accumulates floating point
	// error; a constant expression would fold to an exact 0.3.
	tenth, fifth := 0.1, 0.2
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{name: "integer", in: 100, want: "100"},
		{name: "integral float", in: 2.0, want: "2"},
		{name: "negative zero", in: math.Copysign(0, -1), want: "0"},
		{name: "fraction", in: 1.5, want: "1.5"},
		{name: "accumulated error", in: tenth + fifth, want: "0.30000000000000004"},
		{name: "large magnitude", in: 1e21, want: "1e+21"},
		{name: "negative", in: -42.25, want: "-42.25"},
		{name: "micro units", in: int64(1234567890123), want: "1234567890123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := hashutil.Canonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestCanonical_StructTagsAndNull(t *testing.T) {
	type inner struct {
		ResourceUsage float64 `json:"resourceUsage"`
		BlockType     string  `json:"blockType"`
	}
	type outer struct {
		DayID    string  `json:"dayId"`
		Optional *inner  `json:"optional"`
		Blocks   []inner `json:"blocks"`
		Skipped  string  `json:"skipped,omitempty"`
	}
	b, err := hashutil.Canonical(outer{
		DayID:  "2026-01-28",
		Blocks: []inner{{ResourceUsage: 1.5, BlockType: "INFERENCE"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"blocks":[{"blockType":"INFERENCE","resourceUsage":1.5}],"dayId":"2026-01-28","optional":null}`, string(b))
}

func TestHashObject_IndependentOfInsertionOrder(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": []interface{}{"p", "q"}, "z": 2.5}
	b := map[string]interface{}{"z": 2.5, "y": []interface{}{"p", "q"}, "x": 1}
	ha, err := hashutil.HashObject(a)
	require.NoError(t, err)
	hb, err := hashutil.HashObject(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Equal(t, 64, len(ha))
}

func TestHashObject_DiffersOnContent(t *testing.T) {
	ha, err := hashutil.HashObject(map[string]int{"a": 1})
	require.NoError(t, err)
	hb, err := hashutil.HashObject(map[string]int{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}
