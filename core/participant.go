package core

import (
	"sort"
	"strings"
)

// Participant is a persona able to take part in a conversation. Identity is
// the ID; DisplayName, Role and Color are presentation only. Insights are
// canned phrases used when content has to be produced without a backend.
type Participant struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Role        string   `json:"role,omitempty"`
	Color       string   `json:"color,omitempty"`
	Greeting    string   `json:"greeting,omitempty"`
	Insights    []string `json:"insights,omitempty"`
}

// Name returns the display name, falling back to the id.
func (p Participant) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// Registry resolves participant ids to their static descriptors.
type Registry interface {
	Lookup(id string) (Participant, bool)
	List() []Participant
}

// PairKey identifies an unordered participant set. Two keys built from the
// same ids compare equal regardless of input order.
type PairKey string

// pairKeySeparator joins the sorted ids of a PairKey.
const pairKeySeparator = "-"

// NewPairKey normalizes ids by de-duplicating, sorting and joining them.
func NewPairKey(ids ...string) PairKey {
	seen := make(map[string]struct{}, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)
	return PairKey(strings.Join(uniq, pairKeySeparator))
}

// KeyOf builds the PairKey for a participant set.
func KeyOf(ps ...Participant) PairKey {
	return NewPairKey(IDs(ps)...)
}

// IDs returns the ids of ps in order.
func IDs(ps []Participant) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

// String implements fmt.Stringer.
func (k PairKey) String() string { return string(k) }
