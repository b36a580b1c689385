package errs

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// codes maps application error codes to http status codes.
var codes = map[string]int{
	EBADREQUEST:   http.StatusBadRequest,
	ECONFLICT:     http.StatusConflict,
	EFORBIDDEN:    http.StatusForbidden,
	EINVALID:      http.StatusUnprocessableEntity,
	ENOTFOUND:     http.StatusNotFound,
	EUNAUTHORIZED: http.StatusUnauthorized,
	EINTERNAL:     http.StatusInternalServerError,
}

// ErrorStatusCode returns the associated http status code for an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the json body of every error response.
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// ReturnError writes an application error to the response as json, using the http status
// code belonging to the error's code. Internal errors are logged and their details are
// never sent to the client.
func ReturnError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := ErrorCode(err), ErrorMessage(err)

	if code == EINTERNAL {
		LogError(r, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ErrorStatusCode(code))
	resp := ErrorResponse{
		Message: message,
		Errors:  ErrorFields(err),
	}
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		LogError(r, err)
	}
}

// LogError logs an error together with the request it occurred in.
func LogError(r *http.Request, err error) {
	zap.L().Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", r.Header.Get("X-Request-ID")),
		zap.Error(err),
	)
}
