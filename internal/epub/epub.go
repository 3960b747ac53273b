package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// MimeType is the content of the mimetype entry of a conforming EPUB.
const MimeType = "application/epub+zip"

const containerPath = "META-INF/container.xml"

// ErrNotEPUB reports a zip archive without EPUB markers.
var ErrNotEPUB = errors.New("epub: archive has no mimetype or container entry")

// Book is an opened EPUB container.
type Book struct {
	zr       *zip.ReadCloser
	files    map[string]*zip.File
	opfPath  string
	Metadata Metadata
	// Spine lists content documents in reading order, as archive paths.
	Spine []string
}

// Metadata is the Dublin Core subset shelver uses.
type Metadata struct {
	Title       string
	Authors     []string
	Date        string
	Language    string
	Description string
	Publisher   string
}

// IsEPUB reports whether the zip archive at p carries EPUB markers: a
// mimetype entry equal to application/epub+zip, or a container.xml entry.
func IsEPUB(p string) (bool, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return false, errors.WithStack(err)
	}
	defer zr.Close()
	return hasMarker(&zr.Reader), nil
}

func hasMarker(zr *zip.Reader) bool {
	for _, f := range zr.File {
		switch f.Name {
		case "mimetype":
			data, err := readEntry(f, 256)
			if err == nil && strings.TrimSpace(string(data)) == MimeType {
				return true
			}
		case containerPath:
			return true
		}
	}
	return false
}

// Open reads the container and package document of the EPUB at p.
func Open(p string) (*Book, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !hasMarker(&zr.Reader) {
		zr.Close()
		return nil, ErrNotEPUB
	}
	b := &Book{zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		b.files[f.Name] = f
	}
	if err := b.loadPackage(); err != nil {
		zr.Close()
		return nil, err
	}
	return b, nil
}

// Close releases the archive.
func (b *Book) Close() error {
	return b.zr.Close()
}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
		Date        []string `xml:"date"`
		Language    []string `xml:"language"`
		Description string   `xml:"description"`
		Publisher   string   `xml:"publisher"`
		Meta        []struct {
			Text     string `xml:",chardata"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Itemref []struct {
			Idref string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

func (b *Book) loadPackage() error {
	opfPath, err := b.findPackagePath()
	if err != nil {
		return err
	}
	f, ok := b.files[opfPath]
	if !ok {
		return errors.Errorf("epub: package document %q missing", opfPath)
	}
	data, err := readEntry(f, 4<<20)
	if err != nil {
		return err
	}
	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return errors.Wrapf(err, "epub: parse %s", opfPath)
	}
	b.opfPath = opfPath
	b.Metadata = metadataFrom(&pkg)

	base := path.Dir(opfPath)
	hrefs := make(map[string]string, len(pkg.Manifest.Item))
	for _, item := range pkg.Manifest.Item {
		hrefs[item.ID] = item.Href
	}
	for _, ref := range pkg.Spine.Itemref {
		href, ok := hrefs[ref.Idref]
		if !ok || href == "" {
			continue
		}
		b.Spine = append(b.Spine, resolveHref(base, href))
	}
	return nil
}

func (b *Book) findPackagePath() (string, error) {
	if f, ok := b.files[containerPath]; ok {
		data, err := readEntry(f, 1<<20)
		if err != nil {
			return "", err
		}
		var c container
		if err := xml.Unmarshal(data, &c); err != nil {
			return "", errors.Wrap(err, "epub: parse container.xml")
		}
		for _, rf := range c.Rootfiles {
			if rf.FullPath != "" {
				return rf.FullPath, nil
			}
		}
	}
	// Some generators omit container.xml; fall back to the first .opf entry.
	for name := range b.files {
		if strings.EqualFold(path.Ext(name), ".opf") {
			return name, nil
		}
	}
	return "", errors.New("epub: no package document found")
}

func metadataFrom(pkg *opfPackage) Metadata {
	refines := map[string]map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines == "" {
			continue
		}
		key := strings.TrimPrefix(m.Refines, "#")
		if refines[key] == nil {
			refines[key] = map[string]string{}
		}
		refines[key][m.Property] = strings.TrimSpace(m.Text)
	}

	var md Metadata
	for i, t := range pkg.Metadata.Title {
		if i == 0 || refines[t.ID]["title-type"] == "main" {
			md.Title = strings.TrimSpace(t.Text)
		}
	}
	for _, c := range pkg.Metadata.Creator {
		role := c.Role
		if role == "" && c.ID != "" {
			role = refines[c.ID]["role"]
		}
		if role == "" || role == "aut" || len(pkg.Metadata.Creator) == 1 {
			if name := strings.TrimSpace(c.Text); name != "" {
				md.Authors = append(md.Authors, name)
			}
		}
	}
	if len(pkg.Metadata.Date) > 0 {
		md.Date = strings.TrimSpace(pkg.Metadata.Date[0])
	}
	if len(pkg.Metadata.Language) > 0 {
		md.Language = strings.TrimSpace(pkg.Metadata.Language[0])
	}
	md.Description = strings.TrimSpace(pkg.Metadata.Description)
	md.Publisher = strings.TrimSpace(pkg.Metadata.Publisher)
	return md
}

func resolveHref(base, href string) string {
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	if base == "." || base == "" {
		return path.Clean(href)
	}
	return path.Join(base, href)
}

// OpenEntry opens an archive entry by path.
func (b *Book) OpenEntry(name string) (io.ReadCloser, error) {
	f, ok := b.files[name]
	if !ok {
		return nil, errors.Errorf("epub: entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return rc, nil
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}
