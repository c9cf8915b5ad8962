package model

// Link is an outgoing edge discovered on a page.
type Link struct {
	// Target is the absolute URL the link points to.
	Target string `json:"target"`

	// AnchorText is the trimmed text content of the anchor element.
	// Empty when the anchor has no text (e.g. image links).
	AnchorText string `json:"anchor_text,omitempty"`
}

// Record is a structured result produced by a hook or page callback.
// Records are written to result sinks as-is, one per line.
type Record map[string]any
