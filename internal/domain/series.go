package domain

// Series represents a named collection of books sharing a title, author,
// and cover.
type Series struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author,omitempty"`
	Desc    string `json:"desc,omitempty"`
	CoverID string `json:"cover_id,omitempty"`
}

// SeriesPatch holds a partial series update. Nil fields are left untouched.
type SeriesPatch struct {
	Title   *string `json:"title,omitempty"`
	Author  *string `json:"author,omitempty"`
	Desc    *string `json:"desc,omitempty"`
	CoverID *string `json:"cover_id,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p *SeriesPatch) IsEmpty() bool {
	return p == nil || (p.Title == nil && p.Author == nil && p.Desc == nil && p.CoverID == nil)
}
