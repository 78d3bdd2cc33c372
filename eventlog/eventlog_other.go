//go:build !windows

package eventlog

import "iter"

func Logs() ([]string, error) {
	return nil, ErrUnsupported
}

func Sources(log string) ([]SourceInfo, error) {
	return nil, ErrUnsupported
}

func All() iter.Seq2[SourceInfo, error] {
	return func(yield func(SourceInfo, error) bool) {
		yield(SourceInfo{}, ErrUnsupported)
	}
}
