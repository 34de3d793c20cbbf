package model

import "encoding/json"

// Flag states. A disabled flag behaves as if it did not exist, except that
// evaluations report the DISABLED reason.
const (
	StateEnabled  = "ENABLED"
	StateDisabled = "DISABLED"
)

// Flag is a single feature flag definition. Key is not part of the wire
// format; the configuration parser assigns it from the flag's key in the
// enclosing flags object.
type Flag struct {
	State          string          `json:"state"`
	DefaultVariant string          `json:"defaultVariant,omitempty"`
	Variants       map[string]any  `json:"variants"`
	Targeting      json.RawMessage `json:"targeting,omitempty"`
	Metadata       Metadata        `json:"metadata,omitempty"`
	Key            string          `json:"-"`
}

// Metadata is the free-form metadata attached to a flag or a flag set.
type Metadata = map[string]interface{}
