package enum

// Decision represents the verdict produced for a single signal or for the
// whole post. The integer order is meaningful: combining signals takes the
// maximum under ok < flagged < blocked.
type Decision int

const (
	// DecisionOk indicates the content passed moderation.
	DecisionOk Decision = iota
	// DecisionFlagged indicates the content needs human review.
	DecisionFlagged
	// DecisionBlocked indicates the content was blocked outright.
	DecisionBlocked
)

// String returns the wire name of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionOk:
		return "ok"
	case DecisionFlagged:
		return "flagged"
	case DecisionBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so decisions serialize as
// their wire names inside JSONB summaries.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(text []byte) error {
	switch string(text) {
	case "flagged":
		*d = DecisionFlagged
	case "blocked":
		*d = DecisionBlocked
	default:
		*d = DecisionOk
	}

	return nil
}
