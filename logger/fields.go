package logger

import (
	"time"
)

// Field keys shared by every package that logs.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldPipeline  = "pipeline"
	FieldStage     = "stage"
	FieldStreamID  = "stream_id"
	FieldFrameID   = "frame_id"
	FieldPartition = "partition"
	FieldEventType = "event_type"
	FieldLink      = "link"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("stage opened", logger.Fields("stage", "decode", "parallelism", 4))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for a stage that failed.
func ErrorFields(stage string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldStage: stage,
		FieldError: err.Error(),
	}
}

// DurationFields creates fields for a timed stage step.
func DurationFields(stage string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldStage:    stage,
		FieldDuration: d.Milliseconds(),
	}
}
