package engine

// WritePolicy governs what happens when a data delimiter names a key that
// has already been written in the current frame.
type WritePolicy int

const (
	// Default appends on redundant writes but carries no extra bookkeeping.
	PolicyDefault WritePolicy = iota
	// Append always concatenates the separator before new content.
	PolicyAppend
	// KeepFirst locks the key after its first assignment; later writes are dropped.
	PolicyKeepFirst
	// KeepLast wipes accumulated text and instructions on reassignment.
	PolicyKeepLast
)

// EmittableEvents toggles which of the three event families fire.
type EmittableEvents struct {
	Content bool
	End     bool
	EndData bool
}

// DefaultEmittableEvents emits all three event families, matching the
// Rust default of content/end/end_data all true.
func DefaultEmittableEvents() EmittableEvents {
	return EmittableEvents{Content: true, End: true, EndData: true}
}

// Settings configures a parser instance. Zero value is not directly usable
// for Prefix/DefaultFieldName — use DefaultSettings() or the aslan package's
// functional options, which apply these defaults.
type Settings struct {
	Prefix                        string
	DefaultFieldName              string
	StrictStart                   bool
	StrictEnd                     bool
	Emittable                     EmittableEvents
	MultiDocumentOutput           bool
	CollapseObjectStartWhitespace bool
	AppendSeparator               string
	// MaxObjectDepth, when > 0, removes the whitespace-driven open/close
	// ambiguity in §4.4: at depth >= MaxObjectDepth, [o]/[a] always closes;
	// below it, [o]/[a] always opens when the current key isn't already a
	// container. 0 means unset (the ordinary substantiality-driven rule).
	MaxObjectDepth int
}

// DefaultSettings returns the documented defaults: prefix "aslan", default
// field "_default", whitespace-collapse on, all three strict/multi-document
// flags off, empty append separator, all events emitted, no object-depth cap.
func DefaultSettings() Settings {
	return Settings{
		Prefix:                        "aslan",
		DefaultFieldName:              "_default",
		StrictStart:                   false,
		StrictEnd:                     false,
		Emittable:                     DefaultEmittableEvents(),
		MultiDocumentOutput:           false,
		CollapseObjectStartWhitespace: true,
		AppendSeparator:               "",
		MaxObjectDepth:                0,
	}
}
