// Package ingest implements the asynchronous batch ingestion pipeline:
// classify uploaded files, convert EPUBs to MOBI, extract metadata and
// covers, place artifacts into canonical storage, commit catalog rows,
// and publish stage snapshots to a pollable job record.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bookexapp/bookex-server/internal/domain"
	apperrors "github.com/bookexapp/bookex-server/internal/errors"
	"github.com/bookexapp/bookex-server/internal/media/books"
	"github.com/bookexapp/bookex-server/internal/media/images"
	"github.com/bookexapp/bookex-server/internal/store"
	"github.com/bookexapp/bookex-server/pkg/epubmeta"
)

// Store is the catalog surface the pipeline needs.
type Store interface {
	GetSeries(ctx context.Context, id int64) (*domain.Series, error)
	CreateBooks(ctx context.Context, books []*domain.Book) []store.InsertResult
	CreateJob(ctx context.Context) (int64, error)
	UpdateJob(ctx context.Context, id int64, status []byte) error
}

// Converter produces a MOBI sibling for an EPUB input.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) (string, error)
}

// File is one uploaded file awaiting ingestion, already saved to a
// temporary path by the HTTP boundary.
type File struct {
	TempPath     string
	Name         string // original filename, for extension hints
	DeclaredMIME string
	SeriesID     int64
	Meta         FileMeta
}

// FileMeta is the caller-supplied metadata for one file. Extracted
// values overlay these where present.
type FileMeta struct {
	Title   string
	No      int64
	Desc    string
	CoverID string
}

// Pipeline runs ingestion batches. Files within a batch are processed
// strictly sequentially; independent batches may run concurrently.
type Pipeline struct {
	store     Store
	converter Converter
	books     *books.Storage
	images    *images.Storage
	processor *images.Processor
	logger    *slog.Logger
	debug     bool

	// now is swapped out in tests for a fixed upload timestamp.
	now func() time.Time
}

// New creates a Pipeline.
func New(store Store, converter Converter, bookStorage *books.Storage, imageStorage *images.Storage, processor *images.Processor, debug bool, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		converter: converter,
		books:     bookStorage,
		images:    imageStorage,
		processor: processor,
		logger:    logger,
		debug:     debug,
		now:       time.Now,
	}
}

// Submit registers a job for the batch and returns its id immediately.
// Processing happens asynchronously; callers poll the job record for
// progress. There is no cancellation once a batch has started.
func (p *Pipeline) Submit(ctx context.Context, files []File) (int64, error) {
	jobID, err := p.store.CreateJob(ctx)
	if err != nil {
		return 0, err
	}

	uploadTime := p.now().Unix()
	go p.run(context.WithoutCancel(ctx), jobID, files, uploadTime)

	return jobID, nil
}

// run processes a batch to completion and writes the terminal status.
func (p *Pipeline) run(ctx context.Context, jobID int64, files []File, uploadTime int64) {
	total := len(files)
	outcomes := make([]any, total)

	for i, f := range files {
		outcomes[i] = p.processFile(ctx, jobID, i, total, f, uploadTime)
	}

	p.writeStatus(ctx, jobID, terminalStatus(outcomes))
	p.logger.Info("ingestion batch finished", "job_id", jobID, "files", total)
}

// processFile runs one file through the state machine. Every error and
// panic is contained here; a file's failure never aborts its siblings.
func (p *Pipeline) processFile(ctx context.Context, jobID int64, index, total int, f File, uploadTime int64) (outcome any) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic during file ingestion",
				"job_id", jobID, "file", f.Name, "panic", r)
			outcome = p.failure(fmt.Errorf("panic: %v", r))
		}
	}()

	progress := fmt.Sprintf("%d/%d", index+1, total)
	stage := func(status string, debugPayload any) {
		p.writeStatus(ctx, jobID, p.stageStatus(status, progress, debugPayload))
	}

	stage("resolving series", f.Name)
	series, err := p.store.GetSeries(ctx, f.SeriesID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			err = apperrors.Validationf("series %d does not exist", f.SeriesID)
		}
		stage("failed", err.Error())
		return p.failure(err)
	}

	switch classify(f.DeclaredMIME, f.TempPath) {
	case domain.FiletypeEPUB:
		ids, err := p.ingestEPUB(ctx, stage, f, series, uploadTime)
		if err != nil {
			p.logger.Warn("file ingestion failed",
				"job_id", jobID, "file", f.Name, "error", err)
			stage("failed", err.Error())
			return p.failure(err)
		}
		return committed{IDs: ids}
	case domain.FiletypeMOBI:
		ids, err := p.ingestMOBI(ctx, stage, f, series, uploadTime)
		if err != nil {
			p.logger.Warn("file ingestion failed",
				"job_id", jobID, "file", f.Name, "error", err)
			stage("failed", err.Error())
			return p.failure(err)
		}
		return committed{IDs: ids}
	default:
		p.logger.Warn("unrecognized upload type skipped",
			"job_id", jobID, "file", f.Name, "mime", f.DeclaredMIME)
		stage("skipped", f.DeclaredMIME)
		return "skipped"
	}
}

// ingestEPUB converts, extracts, stores, and commits an EPUB upload,
// producing an epub row and a mobi sibling row.
func (p *Pipeline) ingestEPUB(ctx context.Context, stage func(string, any), f File, series *domain.Series, uploadTime int64) ([]int64, error) {
	// kindlegen refuses inputs without an .epub suffix.
	in := f.TempPath
	if filepath.Ext(in) != ".epub" {
		renamed := in + ".epub"
		if err := os.Rename(in, renamed); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorage, "prepare upload for conversion")
		}
		in = renamed
	}
	out := strings.TrimSuffix(in, ".epub") + ".mobi"

	stage("converting", f.Name)
	if _, err := p.converter.Convert(ctx, in, out); err != nil {
		return nil, err
	}

	stage("extracting metadata", f.Name)
	book, err := epubmeta.Open(in)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadata, "parse epub container")
	}

	meta := f.Meta
	extracted := book.Metadata()
	if extracted.Title != "" {
		meta.Title = extracted.Title
	}
	if extracted.Description != "" {
		meta.Desc = extracted.Description
	}

	epubCoverID, mobiCoverID := meta.CoverID, meta.CoverID
	var blurHash string

	cover, ext, coverErr := book.Cover()
	book.Close()
	switch {
	case coverErr == nil:
		stage("extracting cover", f.Name)
		epubCoverID, err = p.images.Save(domain.FiletypeEPUB, series.Title, ext, cover)
		if err != nil {
			return nil, err
		}
		mobiCoverID, err = p.images.Save(domain.FiletypeMOBI, series.Title, ext, cover)
		if err != nil {
			return nil, err
		}
		if info, err := p.processor.Inspect(cover); err != nil {
			// Undecodable covers are stored without a placeholder.
			p.logger.Debug("cover inspection failed", "file", f.Name, "error", err)
		} else {
			blurHash = info.BlurHash
		}
	case apperrors.Is(coverErr, epubmeta.ErrNoCover):
		// No declared cover: stage skipped, supplied cover ids kept.
	default:
		return nil, apperrors.Wrap(coverErr, apperrors.CodeMetadata, "extract cover image")
	}

	stage("storing files", f.Name)
	epubPath, err := p.books.Add(in, domain.FiletypeEPUB, series.Title, meta.No, ".epub")
	if err != nil {
		return nil, err
	}
	mobiPath, err := p.books.Add(out, domain.FiletypeMOBI, series.Title, meta.No, ".mobi")
	if err != nil {
		return nil, err
	}

	stage("committing", f.Name)
	rows := []*domain.Book{
		{
			SeriesID:      series.ID,
			Title:         meta.Title,
			No:            meta.No,
			Filepath:      epubPath,
			UploadTime:    uploadTime,
			Desc:          meta.Desc,
			CoverID:       epubCoverID,
			Filetype:      domain.FiletypeEPUB,
			CoverBlurHash: blurHash,
		},
		{
			SeriesID:      series.ID,
			Title:         meta.Title,
			No:            meta.No,
			Filepath:      mobiPath,
			UploadTime:    uploadTime,
			Desc:          meta.Desc,
			CoverID:       mobiCoverID,
			Filetype:      domain.FiletypeMOBI,
			CoverBlurHash: blurHash,
		},
	}
	return p.commit(ctx, rows)
}

// ingestMOBI stores a native MOBI/AZW upload and commits one row.
func (p *Pipeline) ingestMOBI(ctx context.Context, stage func(string, any), f File, series *domain.Series, uploadTime int64) ([]int64, error) {
	stage("storing files", f.Name)
	path, err := p.books.Add(f.TempPath, domain.FiletypeMOBI, series.Title, f.Meta.No, ".mobi")
	if err != nil {
		return nil, err
	}

	stage("committing", f.Name)
	rows := []*domain.Book{{
		SeriesID:   series.ID,
		Title:      f.Meta.Title,
		No:         f.Meta.No,
		Filepath:   path,
		UploadTime: uploadTime,
		Desc:       f.Meta.Desc,
		CoverID:    f.Meta.CoverID,
		Filetype:   domain.FiletypeMOBI,
	}}
	return p.commit(ctx, rows)
}

// commit inserts catalog rows and collects the new ids. A constraint
// violation on any row fails the file; already-moved artifacts are not
// rolled back.
func (p *Pipeline) commit(ctx context.Context, rows []*domain.Book) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	for _, result := range p.store.CreateBooks(ctx, rows) {
		if result.Err != nil {
			return nil, result.Err
		}
		ids = append(ids, result.ID)
	}
	return ids, nil
}

// failure produces a result slot for a failed file: the raw error text
// in debug mode, an opaque false otherwise.
func (p *Pipeline) failure(err error) any {
	if p.debug {
		return map[string]any{"error": err.Error()}
	}
	return false
}

// classify maps a declared MIME type to a book format, sniffing the
// file content when the declaration is unhelpful.
func classify(declared, path string) domain.Filetype {
	if ft, ok := mimeToFiletype(declared); ok {
		return ft
	}
	if detected, err := mimetype.DetectFile(path); err == nil {
		if ft, ok := mimeToFiletype(detected.String()); ok {
			return ft
		}
	}
	return ""
}

func mimeToFiletype(mime string) (domain.Filetype, bool) {
	// Strip parameters like "; charset=utf-8".
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	switch strings.TrimSpace(mime) {
	case "application/epub+zip":
		return domain.FiletypeEPUB, true
	case "application/x-mobipocket-ebook", "application/vnd.amazon.ebook", "application/vnd.amazon.mobi8-ebook":
		return domain.FiletypeMOBI, true
	}
	return "", false
}
