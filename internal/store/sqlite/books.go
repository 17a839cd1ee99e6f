package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/bookexapp/bookex-server/internal/domain"
	apperrors "github.com/bookexapp/bookex-server/internal/errors"
	"github.com/bookexapp/bookex-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `"id", "series_id", "title", "no", "filepath",
	"upload_time", "desc", "cover_id", "filetype", "cover_blur_hash"`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book
	var desc, coverID, filetype, blurHash sql.NullString

	err := scanner.Scan(
		&b.ID,
		&b.SeriesID,
		&b.Title,
		&b.No,
		&b.Filepath,
		&b.UploadTime,
		&desc,
		&coverID,
		&filetype,
		&blurHash,
	)
	if err != nil {
		return nil, err
	}

	b.Desc = stringOrEmpty(desc)
	b.CoverID = stringOrEmpty(coverID)
	b.Filetype = domain.Filetype(stringOrEmpty(filetype))
	b.CoverBlurHash = stringOrEmpty(blurHash)
	return &b, nil
}

// insertBook inserts one book row and returns its id.
func (s *Store) insertBook(ctx context.Context, b *domain.Book) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			"series_id", "title", "no", "filepath",
			"upload_time", "desc", "cover_id", "filetype", "cover_blur_hash"
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.SeriesID,
		b.Title,
		b.No,
		b.Filepath,
		b.UploadTime,
		nullString(b.Desc),
		nullString(b.CoverID),
		nullString(string(b.Filetype)),
		nullString(b.CoverBlurHash),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.Wrapf(err, apperrors.CodeDatabase, "filepath %q already cataloged", b.Filepath)
		}
		return 0, apperrors.Wrap(err, apperrors.CodeDatabase, "insert book")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabase, "insert book")
	}
	b.ID = id
	return id, nil
}

// CreateBooks inserts each book independently and returns a result per
// item in input order. One item's constraint violation never aborts its
// siblings; the caller inspects each slot.
func (s *Store) CreateBooks(ctx context.Context, books []*domain.Book) []store.InsertResult {
	results := make([]store.InsertResult, len(books))
	for i, b := range books {
		id, err := s.insertBook(ctx, b)
		results[i] = store.InsertResult{ID: id, Err: err}
	}
	return results
}

// GetBook retrieves a book by id.
// Returns a NOT_FOUND error if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE "id" = ?`, id)

	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("book %d not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabase, "get book")
	}
	return book, nil
}

// SearchBooks returns every book matching the filter. An empty filter is
// a valid unfiltered listing.
func (s *Store) SearchBooks(ctx context.Context, f *store.Filter) ([]*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books`
	clause, args := f.Where(store.EntityBook)
	if clause != "" {
		query += " WHERE " + clause
	}
	query += ` ORDER BY "id"`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabase, "search books")
	}
	defer rows.Close()

	var result []*domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabase, "scan book")
		}
		result = append(result, book)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabase, "search books")
	}
	return result, nil
}

// UpdateBook applies a partial update to one book. An empty patch is
// rejected with store.ErrNoFields; updating an absent row reports NOT_FOUND.
func (s *Store) UpdateBook(ctx context.Context, id int64, patch *domain.BookPatch) error {
	if patch.IsEmpty() {
		return store.ErrNoFields
	}

	var sets []string
	var args []any
	appendSet := func(column string, v any) {
		sets = append(sets, column+" = ?")
		args = append(args, v)
	}
	if patch.SeriesID != nil {
		appendSet(`"series_id"`, *patch.SeriesID)
	}
	if patch.Title != nil {
		appendSet(`"title"`, *patch.Title)
	}
	if patch.No != nil {
		appendSet(`"no"`, *patch.No)
	}
	if patch.Filepath != nil {
		appendSet(`"filepath"`, *patch.Filepath)
	}
	if patch.UploadTime != nil {
		appendSet(`"upload_time"`, *patch.UploadTime)
	}
	if patch.Desc != nil {
		appendSet(`"desc"`, *patch.Desc)
	}
	if patch.CoverID != nil {
		appendSet(`"cover_id"`, *patch.CoverID)
	}
	if patch.Filetype != nil {
		appendSet(`"filetype"`, string(*patch.Filetype))
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET `+joinSets(sets)+` WHERE "id" = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(err, apperrors.CodeDatabase, "filepath already cataloged")
		}
		return apperrors.Wrap(err, apperrors.CodeDatabase, "update book")
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabase, "update book")
	}
	if changed == 0 {
		return apperrors.NotFoundf("book %d not found", id)
	}
	return nil
}

// DeleteBooks removes every book matching the filter and returns the
// number of deleted rows. An empty filter is rejected with store.ErrNoFilter.
func (s *Store) DeleteBooks(ctx context.Context, f *store.Filter) (int64, error) {
	clause, args := f.Where(store.EntityBook)
	if clause == "" {
		return 0, store.ErrNoFilter
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE `+clause, args...)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabase, "delete books")
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabase, "delete books")
	}
	return changed, nil
}

// joinSets joins SET fragments for an UPDATE statement.
func joinSets(sets []string) string {
	return strings.Join(sets, ", ")
}
