// Package epubmeta provides EPUB metadata and cover extraction.
//
// An EPUB is a zip container: META-INF/container.xml names the package
// document (OPF), which carries Dublin Core metadata and a manifest of
// the book's resources. This package reads just enough of both to pull
// out title, author, description, and the declared cover image.
package epubmeta

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"path"
	"strings"
)

const containerPath = "META-INF/container.xml"

// Metadata holds the Dublin Core fields this package extracts.
type Metadata struct {
	Title       string
	Author      string
	Description string
}

// Book is an opened EPUB container.
type Book struct {
	path    string
	reader  *zip.ReadCloser
	opfDir  string
	pkg     packageDoc
	entries map[string]*zip.File
}

// container.xml structure.
type containerDoc struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// OPF package document structure. Dublin Core elements are matched by
// local name regardless of namespace prefix.
type packageDoc struct {
	Metadata struct {
		Title       string `xml:"title"`
		Creator     string `xml:"creator"`
		Description string `xml:"description"`
		Meta        []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []manifestItem `xml:"item"`
	} `xml:"manifest"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// Open reads the EPUB container at p and parses its package document.
// The returned Book must be closed.
func Open(p string) (*Book, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, &ParseError{Path: p, Part: "zip container", Reason: err.Error()}
	}

	book := &Book{
		path:    p,
		reader:  r,
		entries: make(map[string]*zip.File, len(r.File)),
	}
	for _, f := range r.File {
		book.entries[f.Name] = f
	}

	opfPath, err := book.rootfilePath()
	if err != nil {
		r.Close()
		return nil, err
	}
	book.opfDir = path.Dir(opfPath)

	if err := book.parsePackage(opfPath); err != nil {
		r.Close()
		return nil, err
	}
	return book, nil
}

// Close releases the underlying zip reader.
func (b *Book) Close() error {
	return b.reader.Close()
}

// Metadata returns the book's Dublin Core metadata. Absent elements are
// empty strings.
func (b *Book) Metadata() Metadata {
	return Metadata{
		Title:       strings.TrimSpace(b.pkg.Metadata.Title),
		Author:      strings.TrimSpace(b.pkg.Metadata.Creator),
		Description: strings.TrimSpace(b.pkg.Metadata.Description),
	}
}

// Cover returns the declared cover image's raw bytes and file extension
// (with leading dot). The cover is resolved from the manifest item with
// the "cover-image" property, falling back to the legacy
// <meta name="cover"> item reference. Returns ErrNoCover when the book
// declares neither.
func (b *Book) Cover() ([]byte, string, error) {
	item := b.coverItem()
	if item == nil {
		return nil, "", ErrNoCover
	}

	href := path.Join(b.opfDir, item.Href)
	f, ok := b.entries[href]
	if !ok {
		return nil, "", &ParseError{Path: b.path, Part: "cover image", Reason: "manifest href " + href + " not in container"}
	}

	rc, err := f.Open()
	if err != nil {
		return nil, "", &ParseError{Path: b.path, Part: "cover image", Reason: err.Error()}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", &ParseError{Path: b.path, Part: "cover image", Reason: err.Error()}
	}

	ext := path.Ext(item.Href)
	if ext == "" {
		ext = extFromMediaType(item.MediaType)
	}
	return data, ext, nil
}

// coverItem finds the manifest item declared as the cover, or nil.
func (b *Book) coverItem() *manifestItem {
	for i, item := range b.pkg.Manifest.Items {
		for _, prop := range strings.Fields(item.Properties) {
			if prop == "cover-image" {
				return &b.pkg.Manifest.Items[i]
			}
		}
	}

	// EPUB 2 style: <meta name="cover" content="item-id">.
	for _, meta := range b.pkg.Metadata.Meta {
		if meta.Name != "cover" || meta.Content == "" {
			continue
		}
		for i, item := range b.pkg.Manifest.Items {
			if item.ID == meta.Content {
				return &b.pkg.Manifest.Items[i]
			}
		}
	}
	return nil
}

// rootfilePath reads container.xml and returns the OPF location.
func (b *Book) rootfilePath() (string, error) {
	f, ok := b.entries[containerPath]
	if !ok {
		return "", &ParseError{Path: b.path, Part: "container", Reason: "missing " + containerPath}
	}

	var doc containerDoc
	if err := decodeXML(f, &doc); err != nil {
		return "", &ParseError{Path: b.path, Part: "container.xml", Reason: err.Error()}
	}
	if len(doc.Rootfiles) == 0 || doc.Rootfiles[0].FullPath == "" {
		return "", &ParseError{Path: b.path, Part: "container.xml", Reason: "no rootfile declared"}
	}
	return doc.Rootfiles[0].FullPath, nil
}

// parsePackage reads the OPF document.
func (b *Book) parsePackage(opfPath string) error {
	f, ok := b.entries[opfPath]
	if !ok {
		return &ParseError{Path: b.path, Part: "package document", Reason: "missing " + opfPath}
	}
	if err := decodeXML(f, &b.pkg); err != nil {
		return &ParseError{Path: b.path, Part: "package document", Reason: err.Error()}
	}
	return nil
}

func decodeXML(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

func extFromMediaType(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
