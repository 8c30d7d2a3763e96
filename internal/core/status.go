package core

// StatusCategory is the coarse, protocol-independent outcome label attached
// to task results and response entities. Transports map these to wire-level
// codes.
type StatusCategory string

const (
	StatusSuccess            StatusCategory = "SUCCESS"
	StatusBadRequest         StatusCategory = "BAD_REQUEST"
	StatusUnauthorized       StatusCategory = "UNAUTHORIZED"
	StatusForbidden          StatusCategory = "FORBIDDEN"
	StatusNotFound           StatusCategory = "NOT_FOUND"
	StatusExecutionFailed    StatusCategory = "EXECUTION_FAILED"
	StatusServiceUnavailable StatusCategory = "SERVICE_UNAVAILABLE"
)

// StatusFor translates a raw error into the status category a client sees.
// Missing/ill-typed fields and unknown capability/action map to BAD_REQUEST,
// security violations to their categories, deadline overruns to
// SERVICE_UNAVAILABLE, everything else to EXECUTION_FAILED.
func StatusFor(err error) StatusCategory {
	switch {
	case err == nil:
		return StatusSuccess
	case IsBadRequest(err):
		return StatusBadRequest
	case IsUnauthorized(err):
		return StatusUnauthorized
	case IsForbidden(err):
		return StatusForbidden
	case IsTimeout(err):
		return StatusServiceUnavailable
	default:
		return StatusExecutionFailed
	}
}
