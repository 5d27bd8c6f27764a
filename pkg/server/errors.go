package server

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/matzehuels/stepbook/pkg/errors"
)

// problem is the JSON error body. Cell is -1 when the error is not tied to a
// notebook cell; Line is 0 when unknown.
type problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line"`
	Cell    int    `json:"cell"`
	Name    string `json:"name"`
}

// problemFor maps an error to its status and body: coded input errors are
// 400, internal and uncoded errors 500.
func problemFor(err error) (int, problem) {
	var e *errors.Error
	if errors.As(err, &e) {
		status := http.StatusBadRequest
		if errors.IsInternal(e) {
			status = http.StatusInternalServerError
		}
		return status, problem{
			Code:    string(e.Code),
			Message: e.Message,
			Line:    e.Line,
			Cell:    e.Cell,
			Name:    e.Name,
		}
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, problem{
			Code:    "UNAVAILABLE",
			Message: "request did not complete: " + err.Error(),
			Cell:    -1,
		}
	}
	return http.StatusInternalServerError, problem{
		Code:    string(errors.ErrCodeInternal),
		Message: "internal error",
		Cell:    -1,
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, p := problemFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err, "request_id", RequestID(r.Context()))
	}
	writeProblem(w, status, p)
}

func writeProblem(w http.ResponseWriter, status int, p problem) {
	writeJSON(w, status, p)
}
