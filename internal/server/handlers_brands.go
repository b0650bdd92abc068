package server

import (
	"errors"
	"net/http"

	"github.com/renewpackages/renewapi/pkg/brands"
	"github.com/renewpackages/renewapi/pkg/storage"
)

type createBrandRequest struct {
	Name       string   `json:"name" validate:"required"`
	Percentage *float64 `json:"percentage" validate:"required"`
}

type updateBrandRequest struct {
	Name       *string  `json:"name"`
	Percentage *float64 `json:"percentage"`
}

func (s *Server) writeBrandError(w http.ResponseWriter, r *http.Request, fallback string, err error) {
	switch {
	case errors.Is(err, brands.ErrDuplicateName):
		writeError(w, http.StatusBadRequest, "Phone brand name already exists")
	case errors.Is(err, brands.ErrInvalid):
		writeError(w, http.StatusBadRequest, "Name must not be empty and percentage must be between 0 and 100")
	default:
		internalError(w, r, fallback, err)
	}
}

func (s *Server) handleListBrands(w http.ResponseWriter, r *http.Request) {
	list, err := s.Brands.List(r.Context())
	if err != nil {
		internalError(w, r, "Failed to fetch phone brands", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateBrand(w http.ResponseWriter, r *http.Request) {
	var req createBrandRequest
	if !decodeRequest(w, r, &req, "Name and percentage are required", "percentage") {
		return
	}
	b, err := s.Brands.Create(r.Context(), req.Name, *req.Percentage)
	if err != nil {
		s.writeBrandError(w, r, "Failed to add phone brand", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleUpdateBrand(w http.ResponseWriter, r *http.Request) {
	var req updateBrandRequest
	if !decodeRequest(w, r, &req, "Invalid phone brand update", "percentage") {
		return
	}
	b, err := s.Brands.Update(r.Context(), r.PathValue("id"), storage.BrandUpdate{Name: req.Name, Percentage: req.Percentage})
	if err != nil {
		s.writeBrandError(w, r, "Failed to update phone brand", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Phone brand not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBrand(w http.ResponseWriter, r *http.Request) {
	ok, err := s.Brands.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		internalError(w, r, "Failed to delete phone brand", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Phone brand not found")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Phone brand deleted successfully"})
}
