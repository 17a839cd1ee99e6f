package store

import (
	"reflect"
	"testing"
)

func TestWhereEmptyFilter(t *testing.T) {
	clause, args := NewFilter().Where(EntitySeries)
	if clause != "" || args != nil {
		t.Errorf("empty filter: got clause %q args %v, want empty", clause, args)
	}

	var nilFilter *Filter
	clause, args = nilFilter.Where(EntityBook)
	if clause != "" || args != nil {
		t.Errorf("nil filter: got clause %q args %v, want empty", clause, args)
	}
}

func TestWhereTextSubstring(t *testing.T) {
	f := NewFilter().WithText("title", "Foo")

	clause, args := f.Where(EntitySeries)
	if clause != `"title" LIKE ?` {
		t.Errorf("clause: got %q", clause)
	}
	if !reflect.DeepEqual(args, []any{"%Foo%"}) {
		t.Errorf("args: got %v", args)
	}
}

func TestWhereNumericShapes(t *testing.T) {
	tests := []struct {
		name       string
		clause     NumberClause
		wantClause string
		wantArgs   []any
	}{
		{"equals", Equals(5), `("id" = ?)`, []any{int64(5)}},
		{"greater", GreaterThan(5), `("id" > ?)`, []any{int64(5)}},
		{"less", LessThan(5), `("id" < ?)`, []any{int64(5)}},
		{"between", Between(2, 9), `("id" BETWEEN ? AND ?)`, []any{int64(2), int64(9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter().WithNumber("id", tt.clause)
			clause, args := f.Where(EntityBook)
			if clause != tt.wantClause {
				t.Errorf("clause: got %q, want %q", clause, tt.wantClause)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args: got %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestWhereSameFieldClausesORCombine(t *testing.T) {
	f := NewFilter().WithNumber("no", Equals(1), GreaterThan(10))

	clause, args := f.Where(EntityBook)
	want := `("no" = ? OR "no" > ?)`
	if clause != want {
		t.Errorf("clause: got %q, want %q", clause, want)
	}
	if !reflect.DeepEqual(args, []any{int64(1), int64(10)}) {
		t.Errorf("args: got %v", args)
	}
}

func TestWhereFieldsANDCombineInAllowListOrder(t *testing.T) {
	// Insertion order should not matter; output follows the allow-list.
	f := NewFilter().
		WithText("filetype", "epub").
		WithNumber("series_id", Equals(3)).
		WithText("title", "Dune")

	clause, args := f.Where(EntityBook)
	want := `("series_id" = ?) AND "title" LIKE ? AND "filetype" LIKE ?`
	if clause != want {
		t.Errorf("clause: got %q, want %q", clause, want)
	}
	if !reflect.DeepEqual(args, []any{int64(3), "%Dune%", "%epub%"}) {
		t.Errorf("args: got %v", args)
	}
}

func TestWhereIgnoresUnrecognizedFields(t *testing.T) {
	// series_id is a book field; on series it must be ignored.
	f := NewFilter().WithNumber("series_id", Equals(3)).WithText("bogus", "x")

	clause, args := f.Where(EntitySeries)
	if clause != "" || args != nil {
		t.Errorf("got clause %q args %v, want empty", clause, args)
	}
}

func TestWhereIgnoresEmptyText(t *testing.T) {
	f := NewFilter()
	f.Text["title"] = "" // bypass WithText guard

	if clause, _ := f.Where(EntitySeries); clause != "" {
		t.Errorf("empty value should be ignored, got %q", clause)
	}
	if !f.IsEmpty() {
		t.Error("filter with only empty values should report empty")
	}
}

func TestIsEmpty(t *testing.T) {
	if !NewFilter().IsEmpty() {
		t.Error("fresh filter should be empty")
	}
	if NewFilter().WithText("title", "x").IsEmpty() {
		t.Error("filter with a text predicate should not be empty")
	}
	if NewFilter().WithNumber("id", Equals(1)).IsEmpty() {
		t.Error("filter with a numeric predicate should not be empty")
	}
}

func TestFieldsAndKinds(t *testing.T) {
	got := Fields(EntitySeries)
	want := []string{"id", "title", "author", "desc", "cover_id"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("series fields: got %v, want %v", got, want)
	}

	if !IsNumericField(EntityBook, "upload_time") {
		t.Error("upload_time should be numeric")
	}
	if IsNumericField(EntityBook, "filepath") {
		t.Error("filepath should not be numeric")
	}
	if IsNumericField(EntitySeries, "missing") {
		t.Error("unknown field should not be numeric")
	}
}
