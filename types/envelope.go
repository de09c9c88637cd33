package types

import (
	"encoding/json"
	"maps"
)

// Status is the outcome of a dispatch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ResultEnvelope is the single outbound shape of every dispatch.
// Payload keys are rendered beside status and error on the wire.
type ResultEnvelope struct {
	Status  Status
	Payload map[string]any
	Error   string
	Code    ErrorCode
}

// Success builds a success envelope.
func Success(payload map[string]any) ResultEnvelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return ResultEnvelope{Status: StatusSuccess, Payload: payload}
}

// Failure builds an error envelope from a structured error.
func Failure(err *Error) ResultEnvelope {
	return ResultEnvelope{Status: StatusError, Error: err.Message, Code: err.Code}
}

// OK reports whether the envelope is a success.
func (e ResultEnvelope) OK() bool {
	return e.Status == StatusSuccess
}

// String returns the payload field as a string, or "".
func (e ResultEnvelope) String(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// MarshalJSON flattens the payload into the top-level object.
func (e ResultEnvelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Payload)+3)
	maps.Copy(out, e.Payload)
	out["status"] = e.Status
	if e.Status == StatusError {
		out["error"] = e.Error
		if e.Code != "" {
			out["code"] = e.Code
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *ResultEnvelope) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = ResultEnvelope{Payload: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "status":
			s, _ := v.(string)
			e.Status = Status(s)
		case "error":
			e.Error, _ = v.(string)
		case "code":
			c, _ := v.(string)
			e.Code = ErrorCode(c)
		default:
			e.Payload[k] = v
		}
	}
	return nil
}
