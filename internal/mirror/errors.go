package mirror

import "fmt"

// RemoteError wraps a failed list or download against the remote store.
type RemoteError struct {
	Op  string // "list" or "download"
	Key string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// CacheWriteError wraps a local filesystem failure while installing a file.
// The previously installed file, if any, is left untouched.
type CacheWriteError struct {
	Path string
	Err  error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache write %s: %v", e.Path, e.Err)
}

func (e *CacheWriteError) Unwrap() error { return e.Err }
