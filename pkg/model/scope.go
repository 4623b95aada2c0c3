package model

import "strings"

// Separator joins hierarchy components in scope keys and station identifiers.
const Separator = "-"

// Mode labels the deepest populated level of a scope.
type Mode string

const (
	ModeLevel1 Mode = "level1-only"
	ModeLevel2 Mode = "level1-2"
	ModeLevel3 Mode = "level1-3"
	ModeLevel4 Mode = "level1-4"
)

// ScopeKey identifies a node in the four-level station hierarchy
// (organization ACN, account ACC, group ACG, station ACS).
type ScopeKey struct {
	Level1 string `json:"level1_id"`
	Level2 string `json:"level2_id,omitempty"`
	Level3 string `json:"level3_id,omitempty"`
	Level4 string `json:"level4_id,omitempty"`
}

func (k ScopeKey) parts() []string {
	return []string{k.Level1, k.Level2, k.Level3, k.Level4}
}

// Depth is the number of leading populated components.
func (k ScopeKey) Depth() int {
	d := 0
	for _, p := range k.parts() {
		if p == "" {
			break
		}
		d++
	}
	return d
}

// Mode returns the mode label for the key's depth; empty for a zero key.
func (k ScopeKey) Mode() Mode {
	switch k.Depth() {
	case 1:
		return ModeLevel1
	case 2:
		return ModeLevel2
	case 3:
		return ModeLevel3
	case 4:
		return ModeLevel4
	}
	return ""
}

// String renders the key with absent trailing components omitted.
func (k ScopeKey) String() string {
	return strings.Join(k.parts()[:k.Depth()], Separator)
}

// IsZero reports whether no level is populated.
func (k ScopeKey) IsZero() bool { return k.Depth() == 0 }

// Child returns the level-2 scope beneath a level-1 key.
func (k ScopeKey) Child(level2 string) ScopeKey {
	return ScopeKey{Level1: k.Level1, Level2: level2}
}

// Contains reports whether other is k itself or nested beneath it.
func (k ScopeKey) Contains(other ScopeKey) bool {
	d := k.Depth()
	if d == 0 || other.Depth() < d {
		return false
	}
	a, b := k.parts(), other.parts()
	for i := 0; i < d; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Matches applies the station filter for level-3 and level-4 scopes: the
// identifier must start with the rendered key and, for a level-4 key, its
// fourth segment must equal Level4 exactly. Shallower keys match everything
// because station listing is already narrowed to level1/level2.
func (k ScopeKey) Matches(pfid string) bool {
	if k.Depth() < 3 {
		return true
	}
	if !strings.HasPrefix(pfid, k.String()) {
		return false
	}
	if k.Depth() == 4 {
		segs := strings.Split(pfid, Separator)
		return len(segs) > 3 && segs[3] == k.Level4
	}
	return true
}
