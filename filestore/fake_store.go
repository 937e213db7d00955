package filestore

import (
	"fmt"
	"io"
)

type FakeFileStore struct {
	stored int
}

func (f *FakeFileStore) Store(body io.Reader, extWithDot string) (string, error) {
	f.stored++
	return fmt.Sprintf("fake-media-%d%s", f.stored, extWithDot), nil
}

func (f *FakeFileStore) GetUrlFromKey(key string) string {
	return key
}

func (f *FakeFileStore) CleanUp() {}
