package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "bazaar/internal/platform/errors"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Envelope is the body every ops endpoint answers with
type Envelope struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// JSON writes v as application/json with the given status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondOK writes a 200 envelope with data
func RespondOK(w stdhttp.ResponseWriter, r *stdhttp.Request, data any) {
	JSON(w, stdhttp.StatusOK, Envelope{
		StatusCode: stdhttp.StatusOK,
		Status:     stdhttp.StatusText(stdhttp.StatusOK),
		RequestID:  chimw.GetReqID(r.Context()),
		Data:       data,
	})
}

// RespondError writes err under the status its code maps to.
// Unclassified errors answer 503 here: a probe that fails means not serving.
func RespondError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	code := perr.CodeOf(err)
	status := stdhttp.StatusServiceUnavailable
	if code != perr.ErrorCodeUnknown {
		status = perr.HTTPStatusCode(code)
	}
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		Code:       code.String(),
		Error:      err.Error(),
		RequestID:  chimw.GetReqID(r.Context()),
	})
}
