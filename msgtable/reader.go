package msgtable

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// Module could not be mapped, wrapped by LoadError.
	ErrLoadFailed = errors.New("module load failed")
	// Module loaded but has no message table for the accepted languages.
	// Not a failure, the module simply contributes no records.
	ErrNoMessageTable = errors.New("no message table resource")
	// Module loaded but its resource directory could not be walked.
	ErrCorruptImage = errors.New("corrupt module image")
	// Every path repair was tried and none of them loaded, wrapped by ResolveError.
	ErrUnresolvable = errors.New("unresolvable message file path")
)

// ModuleReader loads a module and returns its raw RT_MESSAGETABLE resource.
//
// Implementations report a module that cannot be mapped with a *LoadError,
// which tells the Resolver to try the next candidate path. ErrNoMessageTable
// and ErrCorruptImage mean the module was found and stop the resolution.
type ModuleReader interface {
	ReadMessageTable(c Candidate) ([]byte, error)
}

// ModuleReaderFunc adapts a function to a ModuleReader.
type ModuleReaderFunc func(c Candidate) ([]byte, error)

func (f ModuleReaderFunc) ReadMessageTable(c Candidate) ([]byte, error) {
	return f(c)
}

// LoadError is returned by a ModuleReader when the OS refused to map a module.
type LoadError struct {
	Path ResolvedPath
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("unable to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoadFailed, e.Err}
}

// Errno returns the OS error code behind the failure, if any.
func (e *LoadError) Errno() (syscall.Errno, bool) {
	return errnoOf(e.Err)
}

// Attempt is one candidate path that failed to load.
type Attempt struct {
	Candidate
	Err error
}

// ResolveError lists every candidate tried for a raw path that never loaded.
type ResolveError struct {
	Raw      string
	Attempts []Attempt
}

func (e *ResolveError) Error() string {
	if last := e.Last(); last != nil {
		return fmt.Sprintf("%v %q: %v", ErrUnresolvable, e.Raw, last)
	}
	return fmt.Sprintf("%v %q: no candidate path", ErrUnresolvable, e.Raw)
}

func (e *ResolveError) Unwrap() []error {
	if last := e.Last(); last != nil {
		return []error{ErrUnresolvable, last}
	}
	return []error{ErrUnresolvable}
}

// Last returns the error of the last attempt, the one worth reporting.
func (e *ResolveError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// Errno returns the OS error code of the last attempt.
func (e *ResolveError) Errno() (syscall.Errno, bool) {
	return errnoOf(e.Last())
}

func errnoOf(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if err != nil && errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}
