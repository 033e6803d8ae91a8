package weather

import (
	"archive/zip"
	"errors"
	"io/fs"
	"path/filepath"
)

// ArchiveName is the file name of the per-sensor historical archive.
const ArchiveName = "historical.zip"

// ReadArchiveEntry opens the archive at path and parses the single entry
// named "<date>.csv". A missing archive or a missing entry yields ErrNotFound;
// an unreadable archive is a *ParseError.
// The archive is always closed before returning.
func ReadArchiveEntry(path, date string, parser *Parser) ([]Reading, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &ParseError{Source: filepath.Base(path), Err: err}
	}
	defer zr.Close()

	name := date + ".csv"
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, &ParseError{Source: filepath.Base(path) + ":" + name, Err: err}
		}
		defer rc.Close()

		return parser.Parse(rc, filepath.Base(path)+":"+name)
	}

	return nil, ErrNotFound
}
