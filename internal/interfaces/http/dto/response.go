package dto

import "time"

// Response is the envelope of every sync API reply. Exactly one of Data and
// Error is set.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed call. RequestID and TraceID tie the reply to
// the server log lines and spans of the same request.
type ErrorInfo struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

func NewErrorResponse(code, message string) Response {
	return Response{Error: &ErrorInfo{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}}
}

// NewErrorResponseWithRequestID is NewErrorResponse stamped with the request ID
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	resp := NewErrorResponse(code, message)
	resp.Error.RequestID = requestID
	return resp
}

// WithTraceID sets the trace ID on an error response; success responses and
// empty IDs are left as they are.
func (r Response) WithTraceID(traceID string) Response {
	if r.Error != nil && traceID != "" {
		info := *r.Error
		info.TraceID = traceID
		r.Error = &info
	}
	return r
}
