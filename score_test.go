package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComboValue(t *testing.T) {
	c := DefaultCatalog()
	tests := []struct {
		name     string
		combo    Combo
		prefixes []float32
	}{
		{"empty", nil, []float32{}},
		{"single base", Combo{0}, []float32{5}},
		{"two bases", Combo{9, 12}, []float32{5, 6}},
		{"later reward count replaces earlier", Combo{10, 29}, []float32{27, 26}},
		{"earlier reward count replaced", Combo{29, 10}, []float32{1, 27}},
		{"additional reward", Combo{0, 23}, []float32{5, 10}},
		{"reroll", Combo{0, 57}, []float32{5, 12.5}},
		{"doubled reward", Combo{62}, []float32{2}},
		{"convert collapses rewards", Combo{5, 54}, []float32{2, 75}},
		{"no rewards", Combo{23}, []float32{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrefixValues(c, tt.combo)
			assert.Equal(t, tt.prefixes, got)

			var want float32
			for _, v := range tt.prefixes {
				want += v
			}
			assert.Equal(t, want, ComboValue(c, tt.combo))
		})
	}
}

func TestComboValueOrderMatters(t *testing.T) {
	c := DefaultCatalog()
	// Earlier modifiers are counted once per prefix they appear in.
	assert.Greater(t, ComboValue(c, Combo{9, 12}), ComboValue(c, Combo{12, 9}))
	assert.Equal(t, float32(11), ComboValue(c, Combo{9, 12}))
	assert.Equal(t, float32(7), ComboValue(c, Combo{12, 9}))
}

func TestComboValueDeterministic(t *testing.T) {
	c := DefaultCatalog()
	combo := Combo{47, 10, 21, 28}
	first := ComboValue(c, combo)
	for range 20 {
		assert.Equal(t, first, ComboValue(c, combo))
	}
}
