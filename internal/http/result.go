package httpapi

// Result the JSON envelope every API response uses
// - code: ResultSuccess on success, ResultError or ResultTokenExpired otherwise
// - type: "success" | "error"
// - message: human-readable text the client can show as-is
// - result: payload
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultTokenExpired sent with HTTP 401 so clients can refresh instead of logging out
	ResultTokenExpired = 60401
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}
