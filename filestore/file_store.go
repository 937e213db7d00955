package filestore

import (
	"io"
)

// MediaFileStore persists visit-log media and hands back the reference keys
// the client attaches to a post.
type MediaFileStore interface {
	Store(body io.Reader, extWithDot string) (key string, err error)
	GetUrlFromKey(key string) string
	CleanUp()
}
