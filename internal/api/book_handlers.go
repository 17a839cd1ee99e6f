package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/bookexapp/bookex-server/internal/domain"
	"github.com/bookexapp/bookex-server/internal/http/response"
	"github.com/bookexapp/bookex-server/internal/store"
)

// handleSearchBooks returns books matching the filter body. An empty
// filter lists everything.
func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	filter, err := req.toFilter(store.EntityBook)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	books, err := s.library.SearchBooks(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if books == nil {
		books = []*domain.Book{}
	}

	response.Success(w, books, s.logger)
}

// handleUpdateBook applies a partial update to one book.
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		response.BadRequest(w, "Book ID must be a positive integer", s.logger)
		return
	}

	var patch domain.BookPatch
	if err := json.UnmarshalRead(r.Body, &patch); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if patch.Filetype != nil && !patch.Filetype.Valid() {
		response.BadRequest(w, "Filetype must be epub or mobi", s.logger)
		return
	}

	book, err := s.library.UpdateBook(r.Context(), id, &patch)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, book, s.logger)
}

// handleDeleteBooks removes books matching the filter body along with
// their files and covers. An empty filter is rejected.
func (s *Server) handleDeleteBooks(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	filter, err := req.toFilter(store.EntityBook)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	deleted, err := s.library.DeleteBooks(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]int64{"deleted": deleted}, s.logger)
}
