package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecheck/pkg/model"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		tokens []string
		want   model.ScopeKey
		mode   model.Mode
	}{
		{[]string{"0051"}, model.ScopeKey{Level1: "0051"}, model.ModeLevel1},
		{[]string{"0051-09"}, model.ScopeKey{Level1: "0051", Level2: "09"}, model.ModeLevel2},
		{[]string{"0051 09"}, model.ScopeKey{Level1: "0051", Level2: "09"}, model.ModeLevel2},
		{[]string{"0051", "09", "01"}, model.ScopeKey{Level1: "0051", Level2: "09", Level3: "01"}, model.ModeLevel3},
		{[]string{"0051-09", "01 - 07"}, model.ScopeKey{Level1: "0051", Level2: "09", Level3: "01", Level4: "07"}, model.ModeLevel4},
		{[]string{"a-b-c-d-e"}, model.ScopeKey{Level1: "a", Level2: "b", Level3: "c", Level4: "d"}, model.ModeLevel4},
	}
	for _, tc := range cases {
		got, err := Resolve(tc.tokens)
		require.NoError(t, err, tc.tokens)
		assert.Equal(t, tc.want, got, tc.tokens)
		assert.Equal(t, tc.mode, got.Mode(), tc.tokens)
	}
}

func TestResolveEmpty(t *testing.T) {
	for _, tokens := range [][]string{nil, {}, {""}, {" - ", "\t"}} {
		_, err := Resolve(tokens)
		assert.ErrorIs(t, err, ErrInvalidScope)
	}
}

func TestDecompose(t *testing.T) {
	l3, l4 := Decompose("0051-09-01-07")
	assert.Equal(t, "01", l3)
	assert.Equal(t, "07", l4)
	l3, l4 = Decompose("0051-09")
	assert.Empty(t, l3)
	assert.Empty(t, l4)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "ACN: 0051, ACC: 09", Describe(model.ScopeKey{Level1: "0051", Level2: "09"}))
}
