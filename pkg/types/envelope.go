package types

// SuccessEnvelope wraps every successful response body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the uniform wire shape of a single failure.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope carries a single failure.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// MultiErrorEnvelope carries every violation when more than one field failed
// validation.
type MultiErrorEnvelope struct {
	Errors []APIError `json:"errors"`
}
