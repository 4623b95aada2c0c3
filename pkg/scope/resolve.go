// Package scope turns operator input into hierarchy scope keys.
package scope

import (
	"errors"
	"strings"
	"unicode"

	"pricecheck/pkg/model"
)

// ErrInvalidScope is returned when no identifier was supplied.
var ErrInvalidScope = errors.New("invalid scope: at least a level-1 identifier is required")

// Resolve maps the first one to four identifiers in tokens onto levels 1..4.
// Tokens may themselves contain whitespace or hyphen separators, so
// "0051-09", "0051 09" and ["0051", "09"] resolve identically.
func Resolve(tokens []string) (model.ScopeKey, error) {
	var parts []string
	for _, tok := range tokens {
		parts = append(parts, strings.FieldsFunc(tok, isSeparator)...)
	}
	if len(parts) == 0 {
		return model.ScopeKey{}, ErrInvalidScope
	}
	var key model.ScopeKey
	levels := []*string{&key.Level1, &key.Level2, &key.Level3, &key.Level4}
	for i, p := range parts {
		if i == len(levels) {
			break
		}
		*levels[i] = p
	}
	return key, nil
}

func isSeparator(r rune) bool {
	return r == '-' || unicode.IsSpace(r)
}

// Decompose splits a station identifier into its level-3 and level-4
// segments (third and fourth hyphen-separated parts, each optional).
func Decompose(pfid string) (level3, level4 string) {
	segs := strings.Split(pfid, model.Separator)
	if len(segs) > 2 {
		level3 = segs[2]
	}
	if len(segs) > 3 {
		level4 = segs[3]
	}
	return level3, level4
}

// Describe formats a key for operator-facing messages.
func Describe(key model.ScopeKey) string {
	labels := []string{"ACN", "ACC", "ACG", "ACS"}
	vals := []string{key.Level1, key.Level2, key.Level3, key.Level4}
	out := make([]string, 0, key.Depth())
	for i := 0; i < key.Depth(); i++ {
		out = append(out, labels[i]+": "+vals[i])
	}
	return strings.Join(out, ", ")
}
