package domain

import "strings"

type TransitionKind string

const (
	TransitionFirstSeen     TransitionKind = "FIRST_SEEN"
	TransitionPriceDrop     TransitionKind = "PRICE_DROP"
	TransitionPriceRise     TransitionKind = "PRICE_RISE"
	TransitionUnchanged     TransitionKind = "UNCHANGED"
	TransitionBackInStock   TransitionKind = "BACK_IN_STOCK"
	TransitionOutOfStock    TransitionKind = "OUT_OF_STOCK"
	TransitionTargetReached TransitionKind = "TARGET_REACHED"
)

// TransitionSet holds the facets of a single check in the order they were
// classified.
type TransitionSet []TransitionKind

func (s TransitionSet) Has(kind TransitionKind) bool {
	for _, k := range s {
		if k == kind {
			return true
		}
	}
	return false
}

func (s TransitionSet) Alertable() []TransitionKind {
	kinds := make([]TransitionKind, 0, len(s))
	for _, k := range s {
		if k != TransitionUnchanged {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func (s TransitionSet) String() string {
	parts := make([]string, 0, len(s))
	for _, k := range s {
		parts = append(parts, string(k))
	}
	return strings.Join(parts, ",")
}
