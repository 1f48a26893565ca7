package model

// SuccessResponse is the standard envelope for successful API responses.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorResponse is the standard envelope for error responses. The message is
// deliberately flat so clients can surface it without unwrapping.
type ErrorResponse struct {
	Error string `json:"error"`
}
