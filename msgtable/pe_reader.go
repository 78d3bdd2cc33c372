package msgtable

import (
	"debug/pe"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PEReader reads message tables from module images on disk, without the
// Windows loader. Windows paths are looked up under Root, component by
// component and ignoring case, so an offline copy of a system drive can be
// inventoried from any OS.
//
// The WOW64 redirection flag of a Candidate has no meaning offline and is
// ignored.
type PEReader struct {
	// Directory the drive letter of a candidate path maps to. Empty means
	// paths are opened as they are.
	Root   string
	Filter *LanguageFilter
}

func NewPEReader(root string, filter *LanguageFilter) *PEReader {
	return &PEReader{Root: root, Filter: filter}
}

// ReadMessageTable implements ModuleReader.
func (r *PEReader) ReadMessageTable(c Candidate) ([]byte, error) {
	path := r.LocalPath(c.Path)

	f, err := pe.Open(path)
	if err != nil {
		return nil, &LoadError{Path: c.Path, Err: err}
	}
	defer f.Close()

	section, sectionRVA, rootRVA, err := resourceSection(f)
	if err != nil {
		return nil, err
	}
	if section == nil {
		return nil, ErrNoMessageTable
	}

	dir, err := NewResourceDirectory(section, sectionRVA, rootRVA)
	if err != nil {
		return nil, err
	}
	return readMessageTable(dir, r.Filter)
}

// resourceSection returns the raw section holding the resource directory,
// nil when the image has no resources.
func resourceSection(f *pe.File) (data []byte, sectionRVA, rootRVA uint32, err error) {
	var dirs []pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:min(oh.NumberOfRvaAndSizes, uint32(len(oh.DataDirectory)))]
	case *pe.OptionalHeader64:
		dirs = oh.DataDirectory[:min(oh.NumberOfRvaAndSizes, uint32(len(oh.DataDirectory)))]
	default:
		return nil, 0, 0, fmt.Errorf("%w: no optional header", ErrCorruptImage)
	}
	if len(dirs) <= pe.IMAGE_DIRECTORY_ENTRY_RESOURCE {
		return nil, 0, 0, nil
	}
	rsrc := dirs[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE]
	if rsrc.VirtualAddress == 0 || rsrc.Size == 0 {
		return nil, 0, 0, nil
	}

	for _, s := range f.Sections {
		size := max(s.VirtualSize, s.Size)
		if rsrc.VirtualAddress < s.VirtualAddress || rsrc.VirtualAddress-s.VirtualAddress >= size {
			continue
		}
		b, err := s.Data()
		if err != nil {
			return nil, 0, 0, fmt.Errorf("%w: reading section %s: %w", ErrCorruptImage, s.Name, err)
		}
		return b, s.VirtualAddress, rsrc.VirtualAddress, nil
	}
	return nil, 0, 0, fmt.Errorf("%w: resource directory 0x%x is in no section", ErrCorruptImage, rsrc.VirtualAddress)
}

// LocalPath maps a Windows path onto Root. The drive letter is dropped and
// every component is matched case-insensitively against what exists on
// disk. Components that match nothing are kept as they are so that opening
// the result fails with the OS error.
func (r *PEReader) LocalPath(p ResolvedPath) string {
	if r.Root == "" {
		return string(p)
	}

	s := string(p)
	if len(s) >= 2 && s[1] == ':' {
		s = s[2:]
	}

	local := r.Root
	for _, comp := range strings.Split(s, `\`) {
		if comp == "" || comp == "." || comp == ".." {
			continue
		}
		local = filepath.Join(local, lookupFold(local, comp))
	}
	return local
}

// lookupFold returns the entry of dir named name, ignoring case. An exact
// match wins over a case-insensitive one.
func lookupFold(dir, name string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return name
	}
	found := name
	for _, e := range entries {
		if e.Name() == name {
			return name
		}
		if found == name && strings.EqualFold(e.Name(), name) {
			found = e.Name()
		}
	}
	return found
}
