package model

// Evaluation reasons.
const (
	// StaticReason means the flag has no targeting rule and the default
	// variant was served.
	StaticReason = "STATIC"
	// DefaultReason means a targeting rule was evaluated but declined to
	// select a variant, so the default variant was served.
	DefaultReason = "DEFAULT"
	// TargetingMatchReason means a targeting rule selected the variant.
	TargetingMatchReason = "TARGETING_MATCH"
	// DisabledReason means the flag exists but its state is DISABLED.
	DisabledReason = "DISABLED"
	// ErrorReason means the evaluation failed; ErrorCode carries the class.
	ErrorReason = "ERROR"
	// FlagNotFoundReason means no flag exists under the requested key.
	FlagNotFoundReason = "FLAG_NOT_FOUND"
	// FallbackReason means neither targeting nor a default variant produced
	// a value; the caller should fall back to its own default.
	FallbackReason = "FALLBACK"
)

// Evaluation error codes.
const (
	FlagNotFoundErrorCode = "FLAG_NOT_FOUND"
	ParseErrorCode        = "PARSE_ERROR"
	TypeMismatchErrorCode = "TYPE_MISMATCH"
	GeneralErrorCode      = "GENERAL"
)
