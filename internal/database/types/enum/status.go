package enum

// PostStatus represents the moderation state of a post row.
type PostStatus int

const (
	// PostStatusPending indicates a post is awaiting evaluation.
	PostStatusPending PostStatus = iota
	// PostStatusOk indicates the last combined decision was ok.
	PostStatusOk
	// PostStatusFlagged indicates the last combined decision was flagged.
	PostStatusFlagged
	// PostStatusBlocked indicates the last combined decision was blocked.
	PostStatusBlocked
)

// String returns the wire name of the status.
func (s PostStatus) String() string {
	switch s {
	case PostStatusPending:
		return "pending"
	case PostStatusOk:
		return "ok"
	case PostStatusFlagged:
		return "flagged"
	case PostStatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s PostStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PostStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ok":
		*s = PostStatusOk
	case "flagged":
		*s = PostStatusFlagged
	case "blocked":
		*s = PostStatusBlocked
	default:
		*s = PostStatusPending
	}

	return nil
}

// PostStatusFromDecision maps a combined decision onto the post status it
// finalizes to.
func PostStatusFromDecision(d Decision) PostStatus {
	switch d {
	case DecisionFlagged:
		return PostStatusFlagged
	case DecisionBlocked:
		return PostStatusBlocked
	default:
		return PostStatusOk
	}
}
