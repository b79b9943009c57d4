package directory

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"sealroom/internal/domain"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

var errForbidden = domain.NewError(domain.KindInvalidArgument, "caller may only publish its own keys")

func statusFor(err error) int {
	if err == errForbidden {
		return http.StatusForbidden
	}
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument, domain.KindInvalidPrekeySignature:
		return http.StatusBadRequest
	case domain.KindKeyNotFound, domain.KindNoPrekeyBundle:
		return http.StatusNotFound
	case domain.KindNoMembers:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	body := errorBody{Kind: domain.KindOf(err), Message: err.Error()}
	if status == http.StatusInternalServerError {
		body = errorBody{Kind: domain.KindInternal, Message: "internal error"}
	}
	writeJSON(w, status, body)
	return status
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeError rebuilds the domain error carried by a failed response.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Kind == "" {
		return &StatusError{Code: resp.StatusCode, Err: fmt.Errorf("directory: %s", resp.Status)}
	}
	return &StatusError{Code: resp.StatusCode, Err: domain.NewError(body.Kind, body.Message)}
}

// StatusError is a non-2xx directory response. It unwraps to the domain error.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }
