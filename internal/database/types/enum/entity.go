package enum

// EntityType identifies which signal of a post a ledger row scores.
type EntityType int

const (
	// EntityTypePostText scores the textual content of a post.
	EntityTypePostText EntityType = iota
	// EntityTypePostMedia scores the image attachment of a post.
	EntityTypePostMedia
)

// String returns the wire name of the entity type.
func (e EntityType) String() string {
	switch e {
	case EntityTypePostText:
		return "post_text"
	case EntityTypePostMedia:
		return "post_media"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e EntityType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EntityType) UnmarshalText(text []byte) error {
	if string(text) == "post_media" {
		*e = EntityTypePostMedia
	} else {
		*e = EntityTypePostText
	}

	return nil
}
