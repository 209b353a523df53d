package models

// CounterType is the closed set of message count categories. Keeping this an
// enumeration instead of free-form strings prevents a typo from silently
// creating a new counter row.
type CounterType string

const (
	CounterOneTime  CounterType = "oneTime"
	CounterExpiring CounterType = "expiring"
	CounterStandard CounterType = "standard"
	// CounterAll counts every created message exactly once. A message can be
	// one-time and expiring at the same time and would then appear in both
	// category counters, so "all" is tracked separately rather than summed.
	CounterAll CounterType = "all"
)

// CounterTypes lists every valid counter category.
var CounterTypes = []CounterType{CounterOneTime, CounterExpiring, CounterStandard, CounterAll}

func (t CounterType) Valid() bool {
	switch t {
	case CounterOneTime, CounterExpiring, CounterStandard, CounterAll:
		return true
	}
	return false
}
