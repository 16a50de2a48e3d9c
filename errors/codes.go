package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors, reported synchronously by the call that detected them.
const (
	// ErrCodeUnknownStage indicates a stage class name that is not registered.
	ErrCodeUnknownStage ErrorCode = "UNKNOWN_STAGE"
	// ErrCodeDuplicateStage indicates a stage name that is already taken.
	ErrCodeDuplicateStage ErrorCode = "DUPLICATE_STAGE"
	// ErrCodeInvalidConfig indicates a malformed configuration document.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeInvalidParams indicates stage parameters rejected by the stage.
	ErrCodeInvalidParams ErrorCode = "INVALID_PARAMS"
	// ErrCodeInvalidGraph indicates a cycle, dangling link or isolated stage.
	ErrCodeInvalidGraph ErrorCode = "INVALID_GRAPH"
)

// Lifecycle errors
const (
	// ErrCodeOpenFailed indicates a stage refused to open.
	ErrCodeOpenFailed ErrorCode = "STAGE_OPEN_FAILED"
	// ErrCodePipelineRunning indicates a graph mutation on a running pipeline.
	ErrCodePipelineRunning ErrorCode = "PIPELINE_RUNNING"
	// ErrCodePipelineIdle indicates an operation that needs a running pipeline.
	ErrCodePipelineIdle ErrorCode = "PIPELINE_IDLE"
)

// Generic errors
const (
	// ErrCodeNotFound indicates the requested stage or link was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var configurationCodes = map[ErrorCode]bool{
	ErrCodeUnknownStage:   true,
	ErrCodeDuplicateStage: true,
	ErrCodeInvalidConfig:  true,
	ErrCodeInvalidParams:  true,
	ErrCodeInvalidGraph:   true,
}

// IsConfigurationCode reports whether code belongs to the configuration
// class, i.e. the graph or its documents must be fixed before retrying.
func IsConfigurationCode(code ErrorCode) bool {
	return configurationCodes[code]
}
