package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/graphstudio/engine/internal/api/types"
	appErr "github.com/graphstudio/engine/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ClientCounter reports live realtime room membership.
type ClientCounter interface {
	ClientCount(projectID string) int
	TotalClients() int
}

// decodeValid decodes the JSON body into dst and applies its validator
// tags. Any failure is a CodeInvalid error with no side effects.
func decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return appErr.New(appErr.CodeInvalid, "invalid JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid payload")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.APIResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, types.StatusFor(err), types.APIResponse{Success: false, Error: types.FromAppError(err)})
}
