// Package system canonicalizes system/application names into the keys used to
// group change requests. Normalize is the single source of truth for grouping:
// the registry, list filters and dashboard aggregation all route through it.
package system

import "strings"

// Key is a canonical system identifier.
type Key string

// Known systems in dashboard card order.
const (
	RSCP    Key = "RSCP"
	RVHD    Key = "RVHD"
	PPMS    Key = "PPMS"
	RNQC    Key = "RNQC"
	SC2     Key = "SC2"
	RSystem Key = "R-SYSTEM"
	Others  Key = "OTHERS"
)

// New is the pseudo-system used by clients to add a CR for a system that has
// no bucket yet. It never has CRs of its own.
const New Key = "NEW"

var known = []Key{RSCP, RVHD, PPMS, RNQC, SC2, RSystem, Others}

// aliases maps spellings seen in user input to their canonical key.
var aliases = map[string]Key{
	"SC":      SC2,
	"RSYSTEM": RSystem,
}

// labels overrides the display name of a key.
var labels = map[Key]string{
	Others: "FINANCE",
}

// Normalize trims, uppercases and resolves aliases. Applying it twice yields
// the same key.
func Normalize(raw string) Key {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if k, ok := aliases[v]; ok {
		return k
	}
	return Key(v)
}

// Known returns the fixed set of systems in dashboard card order.
func Known() []Key {
	return append([]Key(nil), known...)
}

// IsKnown reports whether k is one of the fixed systems.
func IsKnown(k Key) bool {
	for _, v := range known {
		if v == k {
			return true
		}
	}
	return false
}

// Label is the display label for k.
func Label(k Key) string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

func (k Key) String() string {
	return string(k)
}
