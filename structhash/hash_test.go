package structhash

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Rect    [4]float64     `json:"rect"`
	Objects []any          `json:"objects"`
	Extra   map[string]int `json:"extra"`
}

func TestOfDeterministic(t *testing.T) {
	v := sample{
		Rect:    [4]float64{0, 0, 512, 512},
		Objects: []any{map[string]any{"type": "rect", "id": "r1"}},
		Extra:   map[string]int{"b": 2, "a": 1},
	}
	k1, err := Of(v)
	require.NoError(t, err)
	k2, err := Of(v)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	// Map insertion order must not matter.
	w := v
	w.Extra = map[string]int{"a": 1, "b": 2}
	assert.Equal(t, k1, MustOf(w))
}

func TestOfChangesWithState(t *testing.T) {
	base := sample{Rect: [4]float64{0, 0, 10, 10}}
	changed := base
	changed.Rect[2] = 11
	assert.NotEqual(t, MustOf(base), MustOf(changed))
}

func TestOfRejectsNaN(t *testing.T) {
	_, err := Of(math.NaN())
	assert.Error(t, err)
	assert.Panics(t, func() { MustOf(math.Inf(1)) })
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "00000000000000ff", Key(255).String())
	data, err := Key(1).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"0000000000000001"`, string(data))
}
