// survey/errors.go
package survey

import "errors"

// Failure classes. Every error returned by this package wraps one of them.
var (
	ErrDiscovery   = errors.New("discovery failed")
	ErrRetrieval   = errors.New("retrieval failed")
	ErrArchive     = errors.New("archive unreadable")
	ErrDecode      = errors.New("decode failed")
	ErrPersistence = errors.New("persistence failed")
)
