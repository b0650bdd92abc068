package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"github.com/renewpackages/renewapi/internal/utils"
	"github.com/renewpackages/renewapi/pkg/aggregate"
	"github.com/renewpackages/renewapi/pkg/storage"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Warnf("Could not encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// internalError logs cause and answers with a generic message.
func internalError(w http.ResponseWriter, r *http.Request, msg string, cause error) {
	utils.Log.Errorf("%s %s: %s: %v", r.Method, r.URL.Path, msg, cause)
	writeError(w, http.StatusInternalServerError, msg)
}

// writeServiceError maps core errors to a status, falling back to 500 with
// the given message.
func writeServiceError(w http.ResponseWriter, r *http.Request, fallback string, err error) {
	switch {
	case errors.Is(err, aggregate.ErrValidation):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), aggregate.ErrValidation.Error()+": "))
	case errors.Is(err, storage.ErrConstraint):
		writeError(w, http.StatusBadRequest, "Percentage must be between 0 and 100")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	default:
		internalError(w, r, fallback, err)
	}
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// decodeRequest reads a JSON body into dst and validates it. numeric names
// fields that must be JSON numbers when present.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}, invalidMsg string, numeric ...string) bool {
	body, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if !gjson.ValidBytes(body) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	for _, field := range numeric {
		if v := gjson.GetBytes(body, field); v.Exists() && v.Type != gjson.Number {
			writeError(w, http.StatusBadRequest, field+" must be a number")
			return false
		}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, invalidMsg)
		return false
	}
	return true
}
