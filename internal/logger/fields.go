package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldComponent = "component"

	// FieldBatchID identifies one caption generation run
	FieldBatchID = "batch_id"
	FieldDiaryID = "diary_id"
	FieldPhotoID = "photo_id"
)

// Metric fields, attached per entry for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
