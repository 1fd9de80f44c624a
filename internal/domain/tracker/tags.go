package tracker

import "strings"

// Tag is a set of movement flags. Several may be set at once, e.g.
// Improved|CrossedIn.
type Tag uint8

const (
	Unranked Tag = 1 << iota
	Unchanged
	Improved
	Worsened
	CrossedIn
	CrossedOut
)

var tagNames = []struct {
	tag  Tag
	name string
}{
	{Unranked, "unranked"},
	{Unchanged, "unchanged"},
	{Improved, "improved"},
	{Worsened, "worsened"},
	{CrossedIn, "crossed-in"},
	{CrossedOut, "crossed-out"},
}

// Has reports whether every flag in other is set.
func (t Tag) Has(other Tag) bool { return other != 0 && t&other == other }

// Names lists the set flags in declaration order.
func (t Tag) Names() []string {
	names := make([]string, 0, 2)
	for _, n := range tagNames {
		if t&n.tag != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

func (t Tag) String() string {
	if t == 0 {
		return "none"
	}
	return strings.Join(t.Names(), "|")
}
