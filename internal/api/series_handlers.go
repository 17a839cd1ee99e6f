package api

import (
	"encoding/json/v2"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bookexapp/bookex-server/internal/domain"
	"github.com/bookexapp/bookex-server/internal/http/response"
	"github.com/bookexapp/bookex-server/internal/store"
)

// parseID reads a numeric path parameter.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// handleCreateSeries creates a new series.
func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var req createSeriesRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	series, err := s.library.CreateSeries(r.Context(), &domain.Series{
		Title:   req.Title,
		Author:  req.Author,
		Desc:    req.Desc,
		CoverID: req.CoverID,
	})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, series, s.logger)
}

// handleGetSeries returns a single series by ID.
func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		response.BadRequest(w, "Series ID must be a positive integer", s.logger)
		return
	}

	series, err := s.library.GetSeries(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, series, s.logger)
}

// handleSearchSeries returns series matching the filter body. An empty
// filter lists everything.
func (s *Server) handleSearchSeries(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	filter, err := req.toFilter(store.EntitySeries)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	series, err := s.library.SearchSeries(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if series == nil {
		series = []*domain.Series{}
	}

	response.Success(w, series, s.logger)
}

// handleUpdateSeries applies a partial update to one series.
func (s *Server) handleUpdateSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		response.BadRequest(w, "Series ID must be a positive integer", s.logger)
		return
	}

	var patch domain.SeriesPatch
	if err := json.UnmarshalRead(r.Body, &patch); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	series, err := s.library.UpdateSeries(r.Context(), id, &patch)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, series, s.logger)
}

// handleDeleteSeries removes series matching the filter body, together
// with their books and files. An empty filter is rejected.
func (s *Server) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	filter, err := req.toFilter(store.EntitySeries)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	deleted, err := s.library.DeleteSeries(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]int64{"deleted": deleted}, s.logger)
}
