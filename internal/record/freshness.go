package record

import "time"

// Freshness classifies how recently a harvested record was last seen.
type Freshness string

const (
	FreshnessFresh         Freshness = "Fresh"
	FreshnessAging         Freshness = "Aging"
	FreshnessStale         Freshness = "Stale"
	FreshnessError         Freshness = "Error"
	FreshnessIndeterminate Freshness = "Indeterminate"
)

// AddFreshness computes a Freshness classification from
// Harvest.Dates.LastSeen and Harvest.Active and assigns it to
// Harvest.Freshness, mirroring the original source's add_freshness. agingAfter
// and staleAfter bound the Fresh/Aging/Stale windows relative to now.
func (w WalkableDict) AddFreshness(now time.Time, agingAfter, staleAfter time.Duration) Freshness {
	active, ok := w.Walk("Harvest.Active")
	if ok {
		if b, isBool := active.(bool); isBool && !b {
			_ = w.Assign("Harvest.Freshness", string(FreshnessError))
			return FreshnessError
		}
	}

	lastSeenRaw, ok := w.Walk("Harvest.Dates.LastSeen")
	if !ok {
		_ = w.Assign("Harvest.Freshness", string(FreshnessIndeterminate))
		return FreshnessIndeterminate
	}

	lastSeen, ok := castDatetime(lastSeenRaw)
	if !ok {
		_ = w.Assign("Harvest.Freshness", string(FreshnessIndeterminate))
		return FreshnessIndeterminate
	}

	age := now.Sub(lastSeen)

	var freshness Freshness
	switch {
	case age <= agingAfter:
		freshness = FreshnessFresh
	case age <= staleAfter:
		freshness = FreshnessAging
	default:
		freshness = FreshnessStale
	}

	_ = w.Assign("Harvest.Freshness", string(freshness))
	return freshness
}
