package msgtable

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	// RT_MESSAGETABLE
	ResourceTypeMessageTable = 11

	// typedef struct _IMAGE_RESOURCE_DIRECTORY {
	//   DWORD Characteristics;
	//   DWORD TimeDateStamp;
	//   WORD  MajorVersion;
	//   WORD  MinorVersion;
	//   WORD  NumberOfNamedEntries;
	//   WORD  NumberOfIdEntries;
	// } IMAGE_RESOURCE_DIRECTORY;
	resourceDirectorySize = 16

	// typedef struct _IMAGE_RESOURCE_DIRECTORY_ENTRY {
	//   DWORD Name;         // high bit: offset of an IMAGE_RESOURCE_DIR_STRING_U
	//   DWORD OffsetToData; // high bit: offset of a subdirectory
	// } IMAGE_RESOURCE_DIRECTORY_ENTRY;
	resourceEntrySize = 8

	// typedef struct _IMAGE_RESOURCE_DATA_ENTRY {
	//   DWORD OffsetToData; // RVA
	//   DWORD Size;
	//   DWORD CodePage;
	//   DWORD Reserved;
	// } IMAGE_RESOURCE_DATA_ENTRY;
	resourceDataEntrySize = 16

	resourceHighBit = 0x80000000

	// Directories nest type, name, language: anything deeper is a loop.
	maxResourceDepth = 3
)

// ResourceID identifies a resource type or name, either by integer (ID) or by
// string (Name). Name wins when both are set.
type ResourceID struct {
	ID   uint16
	Name string
}

func IntResource(id uint16) ResourceID {
	return ResourceID{ID: id}
}

func (r ResourceID) IsString() bool {
	return r.Name != ""
}

func (r ResourceID) String() string {
	if r.IsString() {
		return r.Name
	}
	return "#" + strconv.FormatUint(uint64(r.ID), 10)
}

func (r ResourceID) matches(other ResourceID) bool {
	if r.IsString() || other.IsString() {
		return strings.EqualFold(r.Name, other.Name)
	}
	return r.ID == other.ID
}

// ResourceLanguage names one resource instance: a (type, name, language)
// triple as found by the resource enumeration.
type ResourceLanguage struct {
	Type ResourceID
	Name ResourceID
	Lang uint16
}

func (l ResourceLanguage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", l.Type.String()),
		slog.String("name", l.Name.String()),
		slog.String("lang", "0x"+strconv.FormatUint(uint64(l.Lang), 16)),
	)
}

// resourceModule is a loaded module whose resources can be enumerated,
// natively or from an image on disk.
type resourceModule interface {
	resourceLanguages(typ ResourceID) iter.Seq2[ResourceLanguage, error]
	resourceData(l ResourceLanguage) ([]byte, error)
}

// messageTableLanguages yields every message table instance of m.
func messageTableLanguages(m resourceModule) iter.Seq2[ResourceLanguage, error] {
	return m.resourceLanguages(IntResource(ResourceTypeMessageTable))
}

// readMessageTable returns the data of the first message table whose language
// filter accepts. ErrNoMessageTable when there is none.
func readMessageTable(m resourceModule, filter *LanguageFilter) ([]byte, error) {
	for l, err := range messageTableLanguages(m) {
		if err != nil {
			if errors.Is(err, ErrNoMessageTable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrCorruptImage, err)
		}
		if !filter.Match(l.Lang) {
			LogTrace("message table language not accepted", "resource", l, "filter", filter)
			continue
		}
		data, err := m.resourceData(l)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %v: %w", ErrCorruptImage, l.Name, err)
		}
		return data, nil
	}
	return nil, ErrNoMessageTable
}

// ResourceDirectory walks the resource tree of a PE image (.rsrc section)
// without mapping it. Every read is bounds checked, a malformed tree yields
// an error instead of panicking.
type ResourceDirectory struct {
	section    []byte
	sectionRVA uint32
	root       uint32 // offset of the root directory in section
}

// NewResourceDirectory wraps the raw bytes of the section holding the
// resource tree. sectionRVA is the section's virtual address, rootRVA the
// address of the root directory (data directory entry 2).
func NewResourceDirectory(section []byte, sectionRVA, rootRVA uint32) (*ResourceDirectory, error) {
	if rootRVA < sectionRVA || uint64(rootRVA-sectionRVA)+resourceDirectorySize > uint64(len(section)) {
		return nil, fmt.Errorf("%w: resource root 0x%x outside section at 0x%x (%d bytes)",
			ErrCorruptImage, rootRVA, sectionRVA, len(section))
	}
	return &ResourceDirectory{
		section:    section,
		sectionRVA: sectionRVA,
		root:       rootRVA - sectionRVA,
	}, nil
}

type resourceEntry struct {
	id     ResourceID
	offset uint32 // from the root directory
	isDir  bool
}

// entries yields the entries of the directory at off (relative to the root).
func (d *ResourceDirectory) entries(off uint32) iter.Seq2[resourceEntry, error] {
	return func(yield func(resourceEntry, error) bool) {
		c := newCursor(d.section, 0)
		if err := c.Seek(int(d.root) + int(off)); err != nil {
			yield(resourceEntry{}, fmt.Errorf("resource directory at 0x%x: %w", off, err))
			return
		}
		if err := c.Skip(resourceDirectorySize - 4); err != nil {
			yield(resourceEntry{}, fmt.Errorf("resource directory at 0x%x: %w", off, err))
			return
		}
		named, err1 := c.Uint16()
		ids, err2 := c.Uint16()
		if err := errors.Join(err1, err2); err != nil {
			yield(resourceEntry{}, fmt.Errorf("resource directory at 0x%x: %w", off, err))
			return
		}
		if n := (int(named) + int(ids)) * resourceEntrySize; c.Remaining() < n {
			yield(resourceEntry{}, fmt.Errorf("resource directory at 0x%x: %w: %d entries", off, errOutOfBounds, int(named)+int(ids)))
			return
		}

		for i := 0; i < int(named)+int(ids); i++ {
			name, err1 := c.Uint32()
			data, err2 := c.Uint32()
			if err := errors.Join(err1, err2); err != nil {
				yield(resourceEntry{}, fmt.Errorf("resource directory at 0x%x, entry %d: %w", off, i, err))
				return
			}

			e := resourceEntry{
				offset: data &^ resourceHighBit,
				isDir:  data&resourceHighBit != 0,
			}
			if name&resourceHighBit != 0 {
				s, err := d.readString(name &^ resourceHighBit)
				if err != nil {
					yield(resourceEntry{}, err)
					return
				}
				e.id.Name = s
			} else {
				e.id.ID = uint16(name)
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// typedef struct _IMAGE_RESOURCE_DIR_STRING_U {
//   WORD  Length;        // in characters
//   WCHAR NameString[1];
// } IMAGE_RESOURCE_DIR_STRING_U;
func (d *ResourceDirectory) readString(off uint32) (string, error) {
	c := newCursor(d.section, 0)
	if err := c.Seek(int(d.root) + int(off)); err != nil {
		return "", fmt.Errorf("resource name at 0x%x: %w", off, err)
	}
	n, err := c.Uint16()
	if err != nil {
		return "", fmt.Errorf("resource name at 0x%x: %w", off, err)
	}
	u := make([]uint16, n)
	for i := range u {
		if u[i], err = c.Uint16(); err != nil {
			return "", fmt.Errorf("resource name at 0x%x: %w", off, err)
		}
	}
	return string(utf16.Decode(u)), nil
}

// subdirs yields the subdirectories of the directory at off matching id, or
// all of them when id is nil.
func (d *ResourceDirectory) subdirs(off uint32, id *ResourceID) iter.Seq2[resourceEntry, error] {
	return func(yield func(resourceEntry, error) bool) {
		for e, err := range d.entries(off) {
			if err != nil {
				yield(e, err)
				return
			}
			if id != nil && !id.matches(e.id) {
				continue
			}
			if !e.isDir {
				LogTrace("resource entry is not a directory", "id", e.id.String(), "offset", e.offset)
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Types yields the resource types of the image.
func (d *ResourceDirectory) Types() iter.Seq2[ResourceID, error] {
	return func(yield func(ResourceID, error) bool) {
		for e, err := range d.subdirs(0, nil) {
			if !yield(e.id, err) || err != nil {
				return
			}
		}
	}
}

// Names yields the resource names of type typ.
func (d *ResourceDirectory) Names(typ ResourceID) iter.Seq2[ResourceID, error] {
	return func(yield func(ResourceID, error) bool) {
		for t, err := range d.subdirs(0, &typ) {
			if err != nil {
				yield(ResourceID{}, err)
				return
			}
			for n, err := range d.subdirs(t.offset, nil) {
				if !yield(n.id, err) || err != nil {
					return
				}
			}
		}
	}
}

// Languages yields every (type, name, language) instance of type typ.
func (d *ResourceDirectory) Languages(typ ResourceID) iter.Seq2[ResourceLanguage, error] {
	return func(yield func(ResourceLanguage, error) bool) {
		for t, err := range d.subdirs(0, &typ) {
			if err != nil {
				yield(ResourceLanguage{}, err)
				return
			}
			for n, err := range d.subdirs(t.offset, nil) {
				if err != nil {
					yield(ResourceLanguage{}, err)
					return
				}
				for l, err := range d.entries(n.offset) {
					if err != nil {
						yield(ResourceLanguage{}, err)
						return
					}
					if l.isDir {
						continue
					}
					rl := ResourceLanguage{Type: t.id, Name: n.id, Lang: l.id.ID}
					if !yield(rl, nil) {
						return
					}
				}
			}
		}
	}
}

// Data returns the bytes of resource l. The slice aliases the section.
func (d *ResourceDirectory) Data(l ResourceLanguage) ([]byte, error) {
	off, err := d.find(l)
	if err != nil {
		return nil, err
	}

	c := newCursor(d.section, 0)
	if err := c.Seek(int(d.root) + int(off)); err != nil {
		return nil, fmt.Errorf("resource data entry at 0x%x: %w", off, err)
	}
	if _, err := c.Peek(resourceDataEntrySize); err != nil {
		return nil, fmt.Errorf("resource data entry at 0x%x: %w", off, err)
	}
	rva, err1 := c.Uint32()
	size, err2 := c.Uint32()
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("resource data entry at 0x%x: %w", off, err)
	}
	if rva < d.sectionRVA {
		return nil, fmt.Errorf("resource data at 0x%x precedes its section at 0x%x", rva, d.sectionRVA)
	}

	data := newCursor(d.section, 0)
	if err := data.Seek(int(rva - d.sectionRVA)); err != nil {
		return nil, fmt.Errorf("resource data at 0x%x: %w", rva, err)
	}
	b, err := data.Peek(int(size))
	if err != nil {
		return nil, fmt.Errorf("resource data at 0x%x (%d bytes): %w", rva, size, err)
	}
	return b, nil
}

// find returns the offset of the data entry of l.
func (d *ResourceDirectory) find(l ResourceLanguage) (uint32, error) {
	path := []ResourceID{l.Type, l.Name, IntResource(l.Lang)}
	off := uint32(0)
	for depth, id := range path {
		found := false
		for e, err := range d.entries(off) {
			if err != nil {
				return 0, err
			}
			if !id.matches(e.id) {
				continue
			}
			if last := depth == maxResourceDepth-1; e.isDir == last {
				return 0, fmt.Errorf("resource %v: unexpected entry kind at depth %d", id, depth)
			}
			off, found = e.offset, true
			break
		}
		if !found {
			return 0, fmt.Errorf("%w: resource %v/%v/0x%x", ErrNoMessageTable, l.Type, l.Name, l.Lang)
		}
	}
	return off, nil
}

// resourceLanguages and resourceData make a ResourceDirectory a resourceModule.
func (d *ResourceDirectory) resourceLanguages(typ ResourceID) iter.Seq2[ResourceLanguage, error] {
	return d.Languages(typ)
}

func (d *ResourceDirectory) resourceData(l ResourceLanguage) ([]byte, error) {
	return d.Data(l)
}
