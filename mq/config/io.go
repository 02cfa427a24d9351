package mq_config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

type FullReader interface {
	Normalize(key string) string
	// nil,nil = not found
	ReadAll(key string) ([]byte, error)
}

type OsFullReader struct {
	base string
}

// NewOsFullReader resolves relative names against current directory.
func NewOsFullReader() *OsFullReader {
	r := &OsFullReader{}
	if err := r.SetBase("."); err != nil {
		panic(errors.ErrorStack(err))
	}
	return r
}

func (r *OsFullReader) SetBase(path string) error {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Annotatef(err, "filepath.Abs() path=%s", path)
	}
	r.base = abs
	return nil
}

func (r *OsFullReader) Normalize(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(r.base, path))
}

func (*OsFullReader) ReadAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type MockFullReader struct {
	Map map[string]string
}

func NewMockFullReader(sources map[string]string) *MockFullReader {
	return &MockFullReader{Map: sources}
}

func (r *MockFullReader) Normalize(name string) string {
	return filepath.Clean(name)
}

func (r *MockFullReader) ReadAll(name string) ([]byte, error) {
	if s, ok := r.Map[name]; ok {
		return []byte(s), nil
	}
	return nil, nil
}
