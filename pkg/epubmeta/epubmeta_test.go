package epubmeta_test

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bookexapp/bookex-server/pkg/epubmeta"
)

const testContainerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// writeEPUB builds an EPUB container in a temp dir from name->content pairs.
func writeEPUB(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.epub")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create epub: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close epub: %v", err)
	}
	return path
}

func TestOpen_Metadata(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>The Final Empire</dc:title>
    <dc:creator>Brandon Sanderson</dc:creator>
    <dc:description>A story of ash and mist.</dc:description>
  </metadata>
  <manifest>
    <item id="text" href="text.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
</package>`,
		"OEBPS/text.xhtml": "<html/>",
	})

	book, err := epubmeta.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer book.Close()

	meta := book.Metadata()
	if meta.Title != "The Final Empire" {
		t.Errorf("Title: got %q", meta.Title)
	}
	if meta.Author != "Brandon Sanderson" {
		t.Errorf("Author: got %q", meta.Author)
	}
	if meta.Description != "A story of ash and mist." {
		t.Errorf("Description: got %q", meta.Description)
	}
}

func TestCover_Epub3Property(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Covered</dc:title>
  </metadata>
  <manifest>
    <item id="cov" href="images/cover.jpg" media-type="image/jpeg" properties="cover-image"/>
  </manifest>
</package>`,
		"OEBPS/images/cover.jpg": "jpeg bytes",
	})

	book, err := epubmeta.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer book.Close()

	data, ext, err := book.Cover()
	if err != nil {
		t.Fatalf("Cover: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("data: got %q", data)
	}
	if ext != ".jpg" {
		t.Errorf("ext: got %q, want .jpg", ext)
	}
}

func TestCover_Epub2MetaReference(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Legacy Cover</dc:title>
    <meta name="cover" content="cov"/>
  </metadata>
  <manifest>
    <item id="cov" href="cover.png" media-type="image/png"/>
  </manifest>
</package>`,
		"OEBPS/cover.png": "png bytes",
	})

	book, err := epubmeta.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer book.Close()

	data, ext, err := book.Cover()
	if err != nil {
		t.Fatalf("Cover: %v", err)
	}
	if string(data) != "png bytes" {
		t.Errorf("data: got %q", data)
	}
	if ext != ".png" {
		t.Errorf("ext: got %q, want .png", ext)
	}
}

func TestCover_NoneDeclared(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Coverless</dc:title>
  </metadata>
  <manifest>
    <item id="text" href="text.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
</package>`,
	})

	book, err := epubmeta.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer book.Close()

	_, _, err = book.Cover()
	if !errors.Is(err, epubmeta.ErrNoCover) {
		t.Errorf("expected ErrNoCover, got %v", err)
	}
}

func TestOpen_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.epub")
	if err := os.WriteFile(path, []byte("not a zip"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := epubmeta.Open(path)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var parseErr *epubmeta.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestOpen_MissingContainer(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"mimetype": "application/epub+zip",
	})

	_, err := epubmeta.Open(path)
	var parseErr *epubmeta.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if parseErr.Part != "container" {
		t.Errorf("Part: got %q, want container", parseErr.Part)
	}
}

func TestOpen_MalformedOPF(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf":      "<package><metadata>",
	})

	_, err := epubmeta.Open(path)
	var parseErr *epubmeta.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}
