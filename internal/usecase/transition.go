package usecase

import "github.com/NasaVasa/itemwatcher/internal/domain"

// classify compares a new observation with the product's last committed state.
// It returns the transition facets and the target_alert_sent flag to persist
// alongside the observation.
func classify(product domain.Product, obs domain.Observation) (domain.TransitionSet, bool) {
	var set domain.TransitionSet
	targetSent := product.TargetAlertSent

	if !product.Checked() {
		set = append(set, domain.TransitionFirstSeen)
	} else {
		if product.LastPrice != nil && obs.Price != nil {
			switch {
			case *obs.Price < *product.LastPrice:
				set = append(set, domain.TransitionPriceDrop)
			case *obs.Price > *product.LastPrice:
				set = append(set, domain.TransitionPriceRise)
			}
		}
		if product.LastInStock != nil {
			switch {
			case !*product.LastInStock && obs.InStock:
				set = append(set, domain.TransitionBackInStock)
			case *product.LastInStock && !obs.InStock:
				set = append(set, domain.TransitionOutOfStock)
			}
		}
	}

	if product.TargetPrice != nil && obs.Price != nil {
		if *obs.Price <= *product.TargetPrice {
			if !targetSent {
				set = append(set, domain.TransitionTargetReached)
				targetSent = true
			}
		} else {
			targetSent = false
		}
	}

	if len(set) == 0 {
		set = append(set, domain.TransitionUnchanged)
	}
	return set, targetSent
}
