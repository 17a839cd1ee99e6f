package sqlite

import (
	"context"
	"database/sql"

	"github.com/bookexapp/bookex-server/internal/domain"
	apperrors "github.com/bookexapp/bookex-server/internal/errors"
	"github.com/bookexapp/bookex-server/internal/store"
)

// seriesColumns is the ordered list of columns selected in series queries.
// Must match the scan order in scanSeries.
const seriesColumns = `"id", "title", "author", "desc", "cover_id"`

// scanSeries scans a sql.Row (or sql.Rows via its Scan method) into a domain.Series.
func scanSeries(scanner interface{ Scan(dest ...any) error }) (*domain.Series, error) {
	var s domain.Series
	var author, desc, coverID sql.NullString

	if err := scanner.Scan(&s.ID, &s.Title, &author, &desc, &coverID); err != nil {
		return nil, err
	}

	s.Author = stringOrEmpty(author)
	s.Desc = stringOrEmpty(desc)
	s.CoverID = stringOrEmpty(coverID)
	return &s, nil
}

// CreateSeries inserts a new series and returns its id.
// A duplicate title surfaces as a DATABASE error.
func (s *Store) CreateSeries(ctx context.Context, series *domain.Series) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO series ("title", "author", "desc", "cover_id")
		VALUES (?, ?, ?, ?)`,
		series.Title,
		nullString(series.Author),
		nullString(series.Desc),
		nullString(series.CoverID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.Wrapf(err, apperrors.CodeDatabase, "series title %q already exists", series.Title)
		}
		return 0, apperrors.Wrap(err, apperrors.CodeDatabase, "insert series")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabase, "insert series")
	}
	series.ID = id
	return id, nil
}

// GetSeries retrieves a series by id.
// Returns a NOT_FOUND error if the series does not exist.
func (s *Store) GetSeries(ctx context.Context, id int64) (*domain.Series, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE "id" = ?`, id)

	series, err := scanSeries(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("series %d not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabase, "get series")
	}
	return series, nil
}

// SearchSeries returns every series matching the filter. An empty filter
// is a valid unfiltered listing.
func (s *Store) SearchSeries(ctx context.Context, f *store.Filter) ([]*domain.Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM series`
	clause, args := f.Where(store.EntitySeries)
	if clause != "" {
		query += " WHERE " + clause
	}
	query += ` ORDER BY "id"`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabase, "search series")
	}
	defer rows.Close()

	var result []*domain.Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabase, "scan series")
		}
		result = append(result, series)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabase, "search series")
	}
	return result, nil
}

// UpdateSeries applies a partial update to one series. An empty patch is
// rejected with store.ErrNoFields; updating an absent row reports NOT_FOUND.
func (s *Store) UpdateSeries(ctx context.Context, id int64, patch *domain.SeriesPatch) error {
	if patch.IsEmpty() {
		return store.ErrNoFields
	}

	var sets []string
	var args []any
	appendSet := func(column string, v *string) {
		if v != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *v)
		}
	}
	appendSet(`"title"`, patch.Title)
	appendSet(`"author"`, patch.Author)
	appendSet(`"desc"`, patch.Desc)
	appendSet(`"cover_id"`, patch.CoverID)

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE series SET `+joinSets(sets)+` WHERE "id" = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(err, apperrors.CodeDatabase, "series title already exists")
		}
		return apperrors.Wrap(err, apperrors.CodeDatabase, "update series")
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabase, "update series")
	}
	if changed == 0 {
		return apperrors.NotFoundf("series %d not found", id)
	}
	return nil
}

// DeleteSeries removes every series matching the filter and returns the
// number of deleted rows. An empty filter is rejected with store.ErrNoFilter.
func (s *Store) DeleteSeries(ctx context.Context, f *store.Filter) (int64, error) {
	clause, args := f.Where(store.EntitySeries)
	if clause == "" {
		return 0, store.ErrNoFilter
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE `+clause, args...)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabase, "delete series")
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabase, "delete series")
	}
	return changed, nil
}
