package model

// EvaluationResult is the outcome of a single flag evaluation. Value is
// always present in the serialized form, even when nil; the remaining fields
// are omitted when empty.
type EvaluationResult struct {
	Value        any      `json:"value"`
	Variant      string   `json:"variant,omitempty"`
	Reason       string   `json:"reason"`
	ErrorCode    string   `json:"errorCode,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	FlagMetadata Metadata `json:"flagMetadata,omitempty"`
}

// IsError reports whether the caller should fall back to its own default.
// This covers hard errors as well as the not-found, disabled and fallback
// outcomes, which carry an error code for exactly this purpose.
func (r *EvaluationResult) IsError() bool {
	return r.ErrorCode != ""
}

// UpdateStateResult describes the outcome of replacing the flag set.
type UpdateStateResult struct {
	Success      bool     `json:"success"`
	Error        string   `json:"error,omitempty"`
	ChangedFlags []string `json:"changedFlags,omitempty"`
}
