package core

// TaskResult is the closed outcome type produced by the session. The only
// variants are TaskSuccess and TaskFailure; consumers type-switch over both.
type TaskResult interface {
	isTaskResult()
}

// TaskSuccess carries the pipeline's output.
type TaskSuccess struct {
	Output   map[string]interface{}
	Metadata map[string]interface{}
}

func (TaskSuccess) isTaskResult() {}

// TaskFailure carries the failure's status category and root cause.
type TaskFailure struct {
	Status   StatusCategory
	Cause    error
	Metadata map[string]interface{}
}

func (TaskFailure) isTaskResult() {}

// NewTaskSuccess builds a success result with defensive map snapshots.
func NewTaskSuccess(output, metadata map[string]interface{}) TaskSuccess {
	return TaskSuccess{Output: snapshotMap(output), Metadata: snapshotMap(metadata)}
}

// NewTaskFailure builds a failure result.
func NewTaskFailure(status StatusCategory, cause error, metadata map[string]interface{}) TaskFailure {
	return TaskFailure{Status: status, Cause: cause, Metadata: snapshotMap(metadata)}
}

// ResponseEntity is the closed response type a dispatcher returns to its
// transport. The only variants are ResponseOK and ResponseError.
type ResponseEntity interface {
	isResponseEntity()

	// Status returns the coarse outcome category for wire-code mapping.
	Status() StatusCategory
}

// ResponseOK carries a successful response body.
type ResponseOK struct {
	Data     map[string]interface{}
	Metadata map[string]interface{}
}

func (ResponseOK) isResponseEntity() {}

// Status implements ResponseEntity.
func (ResponseOK) Status() StatusCategory { return StatusSuccess }

// ResponseError carries a failed response with a sanitized message. Cause is
// optional and never serialized to the wire.
type ResponseError struct {
	Category StatusCategory
	Cause    error
	Message  string
}

func (ResponseError) isResponseEntity() {}

// Status implements ResponseEntity.
func (e ResponseError) Status() StatusCategory { return e.Category }

// NewResponseOK builds a success response with defensive map snapshots.
func NewResponseOK(data, metadata map[string]interface{}) ResponseOK {
	return ResponseOK{Data: snapshotMap(data), Metadata: snapshotMap(metadata)}
}

// NewResponseError builds an error response. An empty message falls back to
// the cause's message.
func NewResponseError(category StatusCategory, cause error, message string) ResponseError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return ResponseError{Category: category, Cause: cause, Message: message}
}
