package mirror

import (
	"path"
	"path/filepath"
	"strings"
)

// measurementExts are the file extensions eligible for mirroring.
var measurementExts = []string{".csv", ".zip"}

// Entry is a remote object key resolved to its place in the local cache.
type Entry struct {
	Key        string
	Device     string
	SensorType string
	FileName   string
	LocalPath  string
}

// Eligible reports whether a remote key names a daily CSV or an archive.
func Eligible(key string) bool {
	ext := strings.ToLower(path.Ext(key))
	for _, e := range measurementExts {
		if ext == e {
			return true
		}
	}
	return false
}

// Resolve maps ".../<device>/<sensorType>/<fileName>" onto
// "<cacheRoot>/<device>/<sensorType>/<fileName>". Keys that are not eligible,
// have fewer than three segments, or contain unsafe segments are skipped (ok=false).
func Resolve(cacheRoot, key string) (Entry, bool) {
	if !Eligible(key) {
		return Entry{}, false
	}

	segments := strings.Split(strings.Trim(key, "/"), "/")
	if len(segments) < 3 {
		return Entry{}, false
	}
	tail := segments[len(segments)-3:]
	for _, s := range tail {
		if s == "" || s == "." || s == ".." || strings.Contains(s, `\`) {
			return Entry{}, false
		}
	}

	return Entry{
		Key:        key,
		Device:     tail[0],
		SensorType: tail[1],
		FileName:   tail[2],
		LocalPath:  filepath.Join(cacheRoot, tail[0], tail[1], tail[2]),
	}, true
}
