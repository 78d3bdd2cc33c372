//go:build !windows

package msgtable

import (
	"errors"
	"runtime"
)

// NativeReader needs the Windows loader, use a PEReader elsewhere.
type NativeReader struct {
	Filter *LanguageFilter
}

func NewNativeReader(filter *LanguageFilter) (*NativeReader, error) {
	return nil, errors.New("native module reader is not supported on " + runtime.GOOS)
}

func (r *NativeReader) ReadMessageTable(c Candidate) ([]byte, error) {
	return nil, &LoadError{Path: c.Path, Err: errors.ErrUnsupported}
}

func isWow64Process() bool { return false }
