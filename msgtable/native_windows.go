//go:build windows

package msgtable

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	errResourceDataNotFound = syscall.Errno(1812)  // ERROR_RESOURCE_DATA_NOT_FOUND
	errResourceTypeNotFound = syscall.Errno(1813)  // ERROR_RESOURCE_TYPE_NOT_FOUND
	errResourceNameNotFound = syscall.Errno(1814)  // ERROR_RESOURCE_NAME_NOT_FOUND
	errResourceLangNotFound = syscall.Errno(1815)  // ERROR_RESOURCE_LANG_NOT_FOUND
	errResourceEnumUserStop = syscall.Errno(15106) // ERROR_RESOURCE_ENUM_USER_STOP
)

// NativeReader loads modules with the Windows loader as data files, no code
// runs and dependencies are not resolved.
type NativeReader struct {
	Filter *LanguageFilter
}

// NewNativeReader creates a reader decoding the message tables filter
// accepts, the current UI language when filter is nil.
func NewNativeReader(filter *LanguageFilter) (*NativeReader, error) {
	if err := kernel32.Load(); err != nil {
		return nil, err
	}
	for _, p := range []*windows.LazyProc{enumResourceTypesW, enumResourceNamesW, enumResourceLanguagesW, findResourceExW} {
		if err := p.Find(); err != nil {
			return nil, err
		}
	}
	if filter == nil {
		filter = CurrentLanguageFilter()
	}
	return &NativeReader{Filter: filter}, nil
}

// ReadMessageTable implements ModuleReader.
func (r *NativeReader) ReadMessageTable(c Candidate) ([]byte, error) {
	h, err := loadDataFile(c)
	if err != nil {
		return nil, &LoadError{Path: c.Path, Err: err}
	}
	defer windows.FreeLibrary(h)

	return readMessageTable(&nativeModule{handle: h, path: c.Path}, r.Filter)
}

// loadDataFile maps the module, with WOW64 redirection disabled for the
// duration of the call when the candidate asks for it. The load is attempted
// even when redirection cannot be changed, its error is the one reported.
func loadDataFile(c Candidate) (windows.Handle, error) {
	if c.NoRedirect {
		guard, err := disableFsRedirection()
		if err != nil {
			slog.Warn("unable to disable wow64 redirection", "path", c.Path, "error", err)
		} else {
			defer func() {
				if err := guard.Release(); err != nil {
					slog.Warn("unable to restore wow64 redirection", "path", c.Path, "error", err)
				}
			}()
		}
	}
	return windows.LoadLibraryEx(string(c.Path), 0, windows.LOAD_LIBRARY_AS_DATAFILE)
}

// nativeModule is a module mapped by LoadLibraryEx.
type nativeModule struct {
	handle windows.Handle
	path   ResolvedPath
}

// resourceTypes yields the resource types of the module.
func (m *nativeModule) resourceTypes() iter.Seq2[ResourceID, error] {
	return func(yield func(ResourceID, error) bool) {
		col, done := newCollector()
		defer done()
		err := EnumResourceTypesW(m.handle, enumCallbacks().types, col.token)
		yieldIDs(col.ids, err, yield)
	}
}

// resourceNames yields the names of the resources of type typ.
func (m *nativeModule) resourceNames(typ ResourceID) iter.Seq2[ResourceID, error] {
	return func(yield func(ResourceID, error) bool) {
		lpType, typePin, err := resourcePointer(typ)
		if err != nil {
			yield(ResourceID{}, err)
			return
		}
		col, done := newCollector()
		defer done()
		err = EnumResourceNamesW(m.handle, lpType, enumCallbacks().names, col.token)
		runtime.KeepAlive(typePin)
		yieldIDs(col.ids, err, yield)
	}
}

// resourceLanguagesOf yields the languages resource (typ, name) exists in.
func (m *nativeModule) resourceLanguagesOf(typ, name ResourceID) iter.Seq2[uint16, error] {
	return func(yield func(uint16, error) bool) {
		lpType, typePin, err := resourcePointer(typ)
		if err != nil {
			yield(0, err)
			return
		}
		lpName, namePin, err := resourcePointer(name)
		if err != nil {
			yield(0, err)
			return
		}
		col, done := newCollector()
		defer done()
		err = EnumResourceLanguagesW(m.handle, lpType, lpName, enumCallbacks().langs, col.token)
		runtime.KeepAlive(typePin)
		runtime.KeepAlive(namePin)
		if err = enumError(err); err != nil {
			yield(0, err)
			return
		}
		for _, l := range col.langs {
			if !yield(l, nil) {
				return
			}
		}
	}
}

// resourceLanguages composes names and languages into every instance of typ.
func (m *nativeModule) resourceLanguages(typ ResourceID) iter.Seq2[ResourceLanguage, error] {
	return func(yield func(ResourceLanguage, error) bool) {
		for name, err := range m.resourceNames(typ) {
			if err != nil {
				yield(ResourceLanguage{}, err)
				return
			}
			for lang, err := range m.resourceLanguagesOf(typ, name) {
				if err != nil {
					yield(ResourceLanguage{}, err)
					return
				}
				if !yield(ResourceLanguage{Type: typ, Name: name, Lang: lang}, nil) {
					return
				}
			}
		}
	}
}

// resourceData copies the resource out of the module, the mapping goes away
// with FreeLibrary.
func (m *nativeModule) resourceData(l ResourceLanguage) ([]byte, error) {
	lpType, typePin, err := resourcePointer(l.Type)
	if err != nil {
		return nil, err
	}
	lpName, namePin, err := resourcePointer(l.Name)
	if err != nil {
		return nil, err
	}
	info, err := FindResourceExW(m.handle, lpType, lpName, l.Lang)
	runtime.KeepAlive(typePin)
	runtime.KeepAlive(namePin)
	if err != nil {
		if err = enumError(err); err == nil {
			err = ErrNoMessageTable
		}
		return nil, err
	}
	data, err := windows.LoadResourceData(m.handle, info)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(data), nil
}

// enumError maps the "nothing there" codes of the resource functions to
// ErrNoMessageTable and a stopped enumeration to nil.
func enumError(err error) error {
	if err == nil || errors.Is(err, errResourceEnumUserStop) {
		return nil
	}
	switch {
	case errors.Is(err, errResourceDataNotFound),
		errors.Is(err, errResourceTypeNotFound),
		errors.Is(err, errResourceNameNotFound),
		errors.Is(err, errResourceLangNotFound):
		return fmt.Errorf("%w: %w", ErrNoMessageTable, err)
	}
	return err
}

func yieldIDs(ids []ResourceID, err error, yield func(ResourceID, error) bool) {
	if err = enumError(err); err != nil {
		yield(ResourceID{}, err)
		return
	}
	for _, id := range ids {
		if !yield(id, nil) {
			return
		}
	}
}

// resourcePointer returns the LPCWSTR form of id: MAKEINTRESOURCE for an
// integer, a UTF-16 string otherwise. The second value must be kept alive
// until the pointer is no longer used.
func resourcePointer(id ResourceID) (uintptr, *uint16, error) {
	if !id.IsString() {
		return uintptr(id.ID), nil, nil
	}
	p, err := windows.UTF16PtrFromString(id.Name)
	if err != nil {
		return 0, nil, err
	}
	return uintptr(unsafe.Pointer(p)), p, nil
}

// resourceIDFrom reads the LPWSTR handed to an enumeration callback.
func resourceIDFrom(p uintptr) ResourceID {
	// IS_INTRESOURCE
	if p>>16 == 0 {
		return ResourceID{ID: uint16(p)}
	}
	return ResourceID{Name: windows.UTF16PtrToString((*uint16)(unsafe.Pointer(p)))}
}

// Enumeration callbacks are created once, the runtime can only hand out a
// limited number of them. Each enumeration registers a collector and passes
// its token as lParam.

type resourceCollector struct {
	token uintptr
	ids   []ResourceID
	langs []uint16
}

var (
	collectorsMu sync.Mutex
	collectors   = make(map[uintptr]*resourceCollector)
	nextToken    uintptr
)

func newCollector() (*resourceCollector, func()) {
	collectorsMu.Lock()
	defer collectorsMu.Unlock()
	nextToken++
	col := &resourceCollector{token: nextToken}
	collectors[col.token] = col
	return col, func() {
		collectorsMu.Lock()
		delete(collectors, col.token)
		collectorsMu.Unlock()
	}
}

func collector(token uintptr) *resourceCollector {
	collectorsMu.Lock()
	defer collectorsMu.Unlock()
	return collectors[token]
}

type callbacks struct {
	types uintptr
	names uintptr
	langs uintptr
}

var enumCallbacks = sync.OnceValue(func() callbacks {
	return callbacks{
		// BOOL EnumResTypeProcW(HMODULE hModule, LPWSTR lpType, LONG_PTR lParam)
		types: windows.NewCallback(func(module, lpType, lParam uintptr) uintptr {
			col := collector(lParam)
			if col == nil {
				return 0
			}
			col.ids = append(col.ids, resourceIDFrom(lpType))
			return 1
		}),
		// BOOL EnumResNameProcW(HMODULE hModule, LPCWSTR lpType, LPWSTR lpName, LONG_PTR lParam)
		names: windows.NewCallback(func(module, lpType, lpName, lParam uintptr) uintptr {
			col := collector(lParam)
			if col == nil {
				return 0
			}
			col.ids = append(col.ids, resourceIDFrom(lpName))
			return 1
		}),
		// BOOL EnumResLangProcW(HMODULE hModule, LPCWSTR lpType, LPCWSTR lpName, WORD wLanguage, LONG_PTR lParam)
		langs: windows.NewCallback(func(module, lpType, lpName, wLanguage, lParam uintptr) uintptr {
			col := collector(lParam)
			if col == nil {
				return 0
			}
			col.langs = append(col.langs, uint16(wLanguage))
			return 1
		}),
	}
})
