package api

import (
	apperrors "github.com/bookexapp/bookex-server/internal/errors"
	"github.com/bookexapp/bookex-server/internal/store"
)

// createSeriesRequest is the body for POST /series.
type createSeriesRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=500"`
	Author  string `json:"author" validate:"max=500"`
	Desc    string `json:"desc" validate:"max=5000"`
	CoverID string `json:"cover_id" validate:"max=500"`
}

// numberClauseDTO is one tagged numeric predicate.
type numberClauseDTO struct {
	Op    string `json:"op"` // equals | gt | lt | between
	Value int64  `json:"value"`
	Hi    int64  `json:"hi,omitempty"`
}

// filterRequest is the body for search and filtered-delete endpoints.
// Clause shapes are explicit variants; unknown fields are rejected.
type filterRequest struct {
	Text   map[string]string            `json:"text,omitempty"`
	Number map[string][]numberClauseDTO `json:"number,omitempty"`
}

// toFilter validates the request against an entity's field allow-list
// and builds a store filter.
func (fr *filterRequest) toFilter(e store.Entity) (*store.Filter, error) {
	f := store.NewFilter()

	for field, substring := range fr.Text {
		if !knownField(e, field) {
			return nil, apperrors.Validationf("unknown field %q", field)
		}
		if store.IsNumericField(e, field) {
			return nil, apperrors.Validationf("field %q takes numeric clauses, not text", field)
		}
		f.WithText(field, substring)
	}

	for field, clauses := range fr.Number {
		if !knownField(e, field) {
			return nil, apperrors.Validationf("unknown field %q", field)
		}
		if !store.IsNumericField(e, field) {
			return nil, apperrors.Validationf("field %q takes text clauses, not numeric", field)
		}
		built := make([]store.NumberClause, 0, len(clauses))
		for _, c := range clauses {
			clause, err := buildClause(c)
			if err != nil {
				return nil, err
			}
			built = append(built, clause)
		}
		f.WithNumber(field, built...)
	}

	return f, nil
}

func buildClause(c numberClauseDTO) (store.NumberClause, error) {
	switch c.Op {
	case "equals":
		return store.Equals(c.Value), nil
	case "gt":
		return store.GreaterThan(c.Value), nil
	case "lt":
		return store.LessThan(c.Value), nil
	case "between":
		return store.Between(c.Value, c.Hi), nil
	default:
		return store.NumberClause{}, apperrors.Validationf("unknown clause op %q", c.Op)
	}
}

func knownField(e store.Entity, name string) bool {
	for _, f := range store.Fields(e) {
		if f == name {
			return true
		}
	}
	return false
}

// uploadFileMeta is one slot of the "meta" form field, matched to the
// uploaded files by array index.
type uploadFileMeta struct {
	SeriesID int64  `json:"series_id" validate:"required,gt=0"`
	Title    string `json:"title" validate:"max=500"`
	No       int64  `json:"no" validate:"gte=0"`
	Desc     string `json:"desc" validate:"max=5000"`
	CoverID  string `json:"cover_id" validate:"max=500"`
}

// uploadResponse returns the polling key for a submitted batch.
type uploadResponse struct {
	JobID int64 `json:"job_id"`
}
