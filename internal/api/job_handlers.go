package api

import (
	"net/http"

	"github.com/bookexapp/bookex-server/internal/http/response"
)

// handleGetJob returns the current status record for an ingestion job.
// Clients poll this until the status carries a success field.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		response.BadRequest(w, "Job ID must be a positive integer", s.logger)
		return
	}

	job, err := s.library.GetJob(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, job, s.logger)
}
