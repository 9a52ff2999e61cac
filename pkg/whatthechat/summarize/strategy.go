package summarize

import "time"

// Strategy identifies the summarization prompt template, chosen from the
// wall-clock span between the earliest and latest message in the history.
type Strategy int

const (
	// StrategyEventUpdate covers spans of 0-2 days: terse, event-focused.
	StrategyEventUpdate Strategy = iota

	// StrategyPeriodicalDigest covers spans of 3-6 days: grouped by
	// theme and day.
	StrategyPeriodicalDigest

	// StrategyFullStatus covers spans of 7 days and up: comprehensive,
	// sectioned project status.
	StrategyFullStatus
)

// String returns the human-readable strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyEventUpdate:
		return "Project Event Update"
	case StrategyPeriodicalDigest:
		return "Periodical Digest"
	case StrategyFullStatus:
		return "Full Project Status Summary"
	default:
		return "unknown"
	}
}

// strategyTiers is the ordered (max-days, strategy) table. Evaluated
// top-down; the last tier is open-ended.
var strategyTiers = []struct {
	maxDays  int
	strategy Strategy
}{
	{2, StrategyEventUpdate},
	{6, StrategyPeriodicalDigest},
}

// SelectStrategy picks the strategy for a history spanning earliest to
// latest. The span is measured in whole elapsed days; a conversation
// whose first and last messages are 2 days and 23 hours apart still
// counts as 2 days.
func SelectStrategy(earliest, latest time.Time) Strategy {
	days := int(latest.Sub(earliest).Hours() / 24)
	for _, tier := range strategyTiers {
		if days <= tier.maxDays {
			return tier.strategy
		}
	}
	return StrategyFullStatus
}
