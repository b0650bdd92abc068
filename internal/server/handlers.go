package server

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/renewpackages/renewapi/internal/utils"
	"github.com/renewpackages/renewapi/pkg/aggregate"
	"github.com/renewpackages/renewapi/pkg/importer"
	"github.com/renewpackages/renewapi/pkg/storage"
)

const maxImportBytes = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleB1Values(w http.ResponseWriter, r *http.Request) {
	values, err := s.Engine.TopLevelValues(r.Context())
	if err != nil {
		internalError(w, r, "Failed to fetch B1 values", err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) handleB2Data(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := s.Engine.ChildDistribution(r.Context(), aggregate.B2Under(q.Get("b1")))
	if err != nil {
		writeServiceError(w, r, "Failed to fetch B2 data", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleB3Data(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := s.Engine.ChildDistribution(r.Context(), aggregate.B3Under(q.Get("b1"), q.Get("b2")))
	if err != nil {
		writeServiceError(w, r, "Failed to fetch B3 data", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleB3Details(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	b1, b2, b3 := q.Get("b1"), q.Get("b2"), q.Get("b3")
	if b1 == "" || b2 == "" || b3 == "" {
		writeError(w, http.StatusBadRequest, "B1, B2, and B3 parameters are required")
		return
	}
	rows, err := s.Engine.GroupedDetails(r.Context(), b1, b2, b3)
	if err != nil {
		writeServiceError(w, r, "Failed to fetch B3 details", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type b2PercentageRequest struct {
	B1         string   `json:"b1" validate:"required"`
	Value      string   `json:"value" validate:"required"`
	Percentage *float64 `json:"percentage" validate:"required"`
}

func (s *Server) handleUpdateB2Percentage(w http.ResponseWriter, r *http.Request) {
	var req b2PercentageRequest
	if !decodeRequest(w, r, &req, "B1, value and percentage are required", "percentage") {
		return
	}
	if err := s.Engine.SetChildOverride(r.Context(), aggregate.B2Under(req.B1), req.Value, *req.Percentage); err != nil {
		writeServiceError(w, r, "Failed to update B2 percentage", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "B2 percentage updated successfully"})
}

type b3PercentageRequest struct {
	B1         string   `json:"b1" validate:"required"`
	B2         string   `json:"b2" validate:"required"`
	Value      string   `json:"value" validate:"required"`
	Percentage *float64 `json:"percentage" validate:"required"`
}

func (s *Server) handleUpdateB3Percentage(w http.ResponseWriter, r *http.Request) {
	var req b3PercentageRequest
	if !decodeRequest(w, r, &req, "B1, B2, value and percentage are required", "percentage") {
		return
	}
	if err := s.Engine.SetChildOverride(r.Context(), aggregate.B3Under(req.B1, req.B2), req.Value, *req.Percentage); err != nil {
		writeServiceError(w, r, "Failed to update B3 percentage", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "B3 percentage updated successfully"})
}

type detailPercentageRequest struct {
	B1         string   `json:"b1" validate:"required"`
	B2         string   `json:"b2" validate:"required"`
	B3         string   `json:"b3" validate:"required"`
	Detail     string   `json:"detail" validate:"required"`
	Percentage *float64 `json:"percentage" validate:"required"`
}

func (s *Server) handleUpdateDetailPercentage(w http.ResponseWriter, r *http.Request) {
	var req detailPercentageRequest
	if !decodeRequest(w, r, &req, "B1, B2, B3, detail and percentage are required", "percentage") {
		return
	}
	if err := s.Engine.SetDetailOverride(r.Context(), req.B1, req.B2, req.B3, req.Detail, *req.Percentage); err != nil {
		writeServiceError(w, r, "Failed to update detail percentage", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Detail percentage updated successfully"})
}

func (s *Server) handleClearConfigurations(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.ClearAllOverrides(r.Context()); err != nil {
		internalError(w, r, "Failed to clear configurations", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "All percentage configurations cleared successfully"})
}

func (s *Server) handleMigrateConfigurations(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.MigrateOverrides(r.Context()); err != nil {
		internalError(w, r, "Failed to migrate percentage configurations", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Percentage configuration migration completed successfully"})
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.ClearData(r.Context()); err != nil {
		internalError(w, r, "Failed to clear data", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "All data cleared successfully"})
}

type importResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
	Skipped int    `json:"skipped,omitempty"`
}

// handleImport accepts a JSON array of rows, a CSV body, or a multipart
// upload of an .xlsx or CSV file in the "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		res importer.Result
		err error
	)
	switch {
	case mediaType == "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
		file, fh, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		defer file.Close()
		res, err = importer.DecodeUpload(fh.Filename, file)
	case mediaType == "text/csv":
		res, err = importer.DecodeCSV(http.MaxBytesReader(w, r.Body, maxImportBytes))
	default:
		body, rerr := readBody(w, r, maxImportBytes)
		if rerr != nil {
			writeError(w, http.StatusBadRequest, "Could not read request body")
			return
		}
		res, err = importer.DecodeJSON(body)
	}
	if errors.Is(err, importer.ErrNoRows) {
		writeError(w, http.StatusBadRequest, "No rows to import")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not parse import: "+strings.TrimSpace(err.Error()))
		return
	}

	if err := s.Engine.ReplaceAllEntries(r.Context(), res.Entries); err != nil {
		if errors.Is(err, storage.ErrConstraint) {
			writeError(w, http.StatusBadRequest, "Rows must have B1, B2 and B3")
			return
		}
		writeServiceError(w, r, "Failed to import data", err)
		return
	}
	if res.Skipped > 0 {
		utils.Log.Warnf("Import skipped %d rows missing B1, B2 or B3", res.Skipped)
	}
	writeJSON(w, http.StatusOK, importResponse{
		Message: "Data imported successfully",
		Count:   len(res.Entries),
		Skipped: res.Skipped,
	})
}
