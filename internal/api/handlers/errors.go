package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/TWRT/taskboard/internal/models"
)

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrIllegalTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody renders err with whatever structured context it carries. The
// message is never truncated.
func ErrorBody(err error) map[string]interface{} {
	body := map[string]interface{}{"error": err.Error()}

	var ite *models.IllegalTransitionError
	var cyc *models.CycleError
	var dang *models.DanglingDependencyError
	var schema *models.SchemaError
	switch {
	case errors.As(err, &ite):
		body["guard"] = ite.Guard
		body["from"] = ite.From
		body["to"] = ite.To
		if len(ite.Reasons) > 0 {
			body["reasons"] = ite.Reasons
		}
	case errors.As(err, &cyc):
		body["unresolved"] = cyc.Unresolved
	case errors.As(err, &dang):
		body["task_id"] = dang.TaskID
		body["missing"] = dang.Missing
	case errors.As(err, &schema):
		body["missing"] = schema.Missing
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), ErrorBody(err))
}
