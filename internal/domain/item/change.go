package item

import "time"

// Decision is the change detector's verdict for one remote item.
type Decision int

const (
	// DecisionNew means no local record exists for the remote ID.
	DecisionNew Decision = iota
	// DecisionChanged means the remote timestamp is strictly newer than the
	// stored one.
	DecisionChanged
	// DecisionUnchanged means the local record is current; the item is
	// skipped entirely and does not count toward items updated.
	DecisionUnchanged
)

func (d Decision) String() string {
	switch d {
	case DecisionNew:
		return "new"
	case DecisionChanged:
		return "changed"
	default:
		return "unchanged"
	}
}

// Decide compares the remote last-modified timestamp against the locally
// stored one (nil when no local record exists). Equal timestamps are
// Unchanged: only a strictly newer remote timestamp triggers an update.
// Both sides are normalized to the same precision before comparing.
func Decide(remoteUpdatedAt time.Time, local *time.Time) Decision {
	if local == nil {
		return DecisionNew
	}
	if NormalizeTimestamp(*local).Before(NormalizeTimestamp(remoteUpdatedAt)) {
		return DecisionChanged
	}
	return DecisionUnchanged
}

// NormalizeTimestamp converts a timestamp to UTC at millisecond precision.
// Upstream sources report modification times at different granularities
// (epoch seconds vs. epoch milliseconds); comparing at mixed precision would
// misclassify unchanged items as changed, so every timestamp crosses this
// boundary exactly once on ingestion.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
