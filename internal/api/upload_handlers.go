package api

import (
	"encoding/json/v2"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bookexapp/bookex-server/internal/http/response"
	"github.com/bookexapp/bookex-server/internal/ingest"
)

// handleUploadBooks accepts a multipart batch of ebook files, stages
// them to the temp directory, and enqueues an ingestion job. The
// response carries the job id for status polling; processing happens
// asynchronously.
//
// The request carries one or more file parts under the "files" field
// and a "meta" field holding a JSON array of per-file metadata matched
// to the file parts by index.
func (s *Server) handleUploadBooks(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		response.BadRequest(w, "Invalid multipart request", s.logger)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.Warn("failed to clean multipart temp files", "error", err)
		}
	}()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		response.BadRequest(w, "At least one file is required", s.logger)
		return
	}

	var metas []uploadFileMeta
	if err := json.Unmarshal([]byte(r.FormValue("meta")), &metas); err != nil {
		response.BadRequest(w, "Invalid meta field", s.logger)
		return
	}
	if len(metas) != len(parts) {
		response.BadRequest(w, "Meta entries must match uploaded files one to one", s.logger)
		return
	}
	for i := range metas {
		if err := s.validator.Validate(&metas[i]); err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
	}

	files := make([]ingest.File, 0, len(parts))
	cleanup := func() {
		for _, f := range files {
			if err := os.Remove(f.TempPath); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove staged upload", "path", f.TempPath, "error", err)
			}
		}
	}

	for i, part := range parts {
		tempPath, err := s.stagePart(part)
		if err != nil {
			s.logger.Error("failed to stage upload", "filename", part.Filename, "error", err)
			cleanup()
			response.InternalError(w, "Failed to store uploaded file", s.logger)
			return
		}
		files = append(files, ingest.File{
			TempPath:     tempPath,
			Name:         part.Filename,
			DeclaredMIME: part.Header.Get("Content-Type"),
			SeriesID:     metas[i].SeriesID,
			Meta: ingest.FileMeta{
				Title:   metas[i].Title,
				No:      metas[i].No,
				Desc:    metas[i].Desc,
				CoverID: metas[i].CoverID,
			},
		})
	}

	jobID, err := s.pipeline.Submit(r.Context(), files)
	if err != nil {
		cleanup()
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, uploadResponse{JobID: jobID}, s.logger)
}

// stagePart copies one multipart file to the temp directory under a
// fresh name and returns its path.
func (s *Server) stagePart(part *multipart.FileHeader) (string, error) {
	src, err := part.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(s.tempPath, 0o755); err != nil {
		return "", err
	}

	tempPath := filepath.Join(s.tempPath, uuid.New().String())
	dst, err := os.Create(tempPath)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tempPath)
		return "", err
	}

	return tempPath, nil
}
