package domain

// Filetype identifies the physical book format of a catalog entry.
type Filetype string

const (
	FiletypeEPUB Filetype = "epub"
	FiletypeMOBI Filetype = "mobi"
)

// Valid reports whether f is one of the supported book formats.
func (f Filetype) Valid() bool {
	return f == FiletypeEPUB || f == FiletypeMOBI
}

// Book is one catalog entry for a specific file artifact belonging to a
// series. A single EPUB upload yields two Book rows (an epub variant and
// a mobi variant) that share series, sequence number, title, and
// description but differ in filepath, filetype, and cover.
type Book struct {
	ID            int64    `json:"id"`
	SeriesID      int64    `json:"series_id"`
	Title         string   `json:"title"`
	No            int64    `json:"no"`
	Filepath      string   `json:"filepath"`
	UploadTime    int64    `json:"upload_time"`
	Desc          string   `json:"desc,omitempty"`
	CoverID       string   `json:"cover_id,omitempty"`
	Filetype      Filetype `json:"filetype,omitempty"`
	CoverBlurHash string   `json:"cover_blur_hash,omitempty"`
}

// BookPatch holds a partial book update. Nil fields are left untouched.
type BookPatch struct {
	SeriesID   *int64    `json:"series_id,omitempty"`
	Title      *string   `json:"title,omitempty"`
	No         *int64    `json:"no,omitempty"`
	Filepath   *string   `json:"filepath,omitempty"`
	UploadTime *int64    `json:"upload_time,omitempty"`
	Desc       *string   `json:"desc,omitempty"`
	CoverID    *string   `json:"cover_id,omitempty"`
	Filetype   *Filetype `json:"filetype,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p *BookPatch) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.SeriesID == nil && p.Title == nil && p.No == nil && p.Filepath == nil &&
		p.UploadTime == nil && p.Desc == nil && p.CoverID == nil && p.Filetype == nil
}
