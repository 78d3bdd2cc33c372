package test

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"unicode/utf16"
)

const resourceHighBit = 0x80000000

// ResourceName is an integer or string resource type or name.
type ResourceName struct {
	ID   uint16
	Name string
}

// Resource is one (type, name, language) leaf of a resource tree.
type Resource struct {
	Type ResourceName
	Name ResourceName
	Lang uint16
	Data []byte
}

// MessageTableResource places data as message table 1 in language lang.
func MessageTableResource(lang uint16, data []byte) Resource {
	return Resource{
		Type: ResourceName{ID: 11},
		Name: ResourceName{ID: 1},
		Lang: lang,
		Data: data,
	}
}

type dirNode struct {
	id       ResourceName
	children []*dirNode
	leaves   []*Resource

	offset    int
	strOffset int
}

func (d *dirNode) child(id ResourceName) *dirNode {
	for _, c := range d.children {
		if c.id == id {
			return c
		}
	}
	c := &dirNode{id: id}
	d.children = append(d.children, c)
	return c
}

func (d *dirNode) size() int {
	return 16 + 8*(len(d.children)+len(d.leaves))
}

// BuildResourceSection lays out a .rsrc section for a section mapped at rva:
// directories, data entries, name strings, then the resource data.
func BuildResourceSection(rva uint32, resources ...Resource) []byte {
	root := &dirNode{}
	for i := range resources {
		r := &resources[i]
		n := root.child(r.Type).child(r.Name)
		n.leaves = append(n.leaves, r)
	}

	dirs := []*dirNode{root}
	dirs = append(dirs, root.children...)
	for _, t := range root.children {
		dirs = append(dirs, t.children...)
	}

	off := 0
	for _, d := range dirs {
		d.offset = off
		off += d.size()
	}
	leafOffsets := make(map[*Resource]int)
	for _, d := range dirs {
		for _, l := range d.leaves {
			leafOffsets[l] = off
			off += 16
		}
	}
	for _, d := range dirs[1:] {
		if d.id.Name != "" {
			d.strOffset = off
			off += 2 + 2*len(utf16.Encode([]rune(d.id.Name)))
		}
	}
	off = align(off, 4)
	dataOffsets := make(map[*Resource]int)
	for _, d := range dirs {
		for _, l := range d.leaves {
			dataOffsets[l] = off
			off = align(off+len(l.Data), 4)
		}
	}

	b := make([]byte, off)
	le := binary.LittleEndian
	for _, d := range dirs {
		named := 0
		for _, c := range d.children {
			if c.id.Name != "" {
				named++
			}
		}
		le.PutUint16(b[d.offset+12:], uint16(named))
		le.PutUint16(b[d.offset+14:], uint16(len(d.children)+len(d.leaves)-named))

		e := d.offset + 16
		for _, c := range d.children {
			name := uint32(c.id.ID)
			if c.id.Name != "" {
				name = uint32(c.strOffset) | resourceHighBit
			}
			le.PutUint32(b[e:], name)
			le.PutUint32(b[e+4:], uint32(c.offset)|resourceHighBit)
			e += 8
		}
		for _, l := range d.leaves {
			le.PutUint32(b[e:], uint32(l.Lang))
			le.PutUint32(b[e+4:], uint32(leafOffsets[l]))
			e += 8
		}
	}
	for l, lo := range leafOffsets {
		le.PutUint32(b[lo:], rva+uint32(dataOffsets[l]))
		le.PutUint32(b[lo+4:], uint32(len(l.Data)))
	}
	for _, d := range dirs[1:] {
		if d.id.Name == "" {
			continue
		}
		u := utf16.Encode([]rune(d.id.Name))
		le.PutUint16(b[d.strOffset:], uint16(len(u)))
		for i, c := range u {
			le.PutUint16(b[d.strOffset+2+2*i:], c)
		}
	}
	for l, do := range dataOffsets {
		copy(b[do:], l.Data)
	}
	return b
}

const (
	peSectionRVA    = 0x1000
	peFileAlignment = 0x200
)

// BuildPE returns a minimal 64-bit DLL image whose only section holds the
// resources. Without resources the resource data directory is left empty.
func BuildPE(resources ...Resource) []byte {
	var rsrc []byte
	if len(resources) > 0 {
		rsrc = BuildResourceSection(peSectionRVA, resources...)
	}
	rawSize := align(max(len(rsrc), 1), peFileAlignment)

	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(pe.OptionalHeader64{})),
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_DLL | pe.IMAGE_FILE_LARGE_ADDRESS_AWARE,
	}
	oh := pe.OptionalHeader64{
		Magic:               0x20b,
		ImageBase:           0x180000000,
		SectionAlignment:    0x1000,
		FileAlignment:       peFileAlignment,
		SizeOfImage:         uint32(peSectionRVA + align(rawSize, 0x1000)),
		SizeOfHeaders:       peFileAlignment,
		Subsystem:           pe.IMAGE_SUBSYSTEM_WINDOWS_GUI,
		NumberOfRvaAndSizes: 16,
	}
	if len(rsrc) > 0 {
		oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE] = pe.DataDirectory{
			VirtualAddress: peSectionRVA,
			Size:           uint32(len(rsrc)),
		}
	}
	sh := pe.SectionHeader32{
		VirtualSize:      uint32(len(rsrc)),
		VirtualAddress:   peSectionRVA,
		SizeOfRawData:    uint32(rawSize),
		PointerToRawData: peFileAlignment,
		Characteristics:  0x40000040, // IMAGE_SCN_CNT_INITIALIZED_DATA | IMAGE_SCN_MEM_READ
	}
	copy(sh.Name[:], ".rsrc")

	var buf bytes.Buffer
	dos := make([]byte, 0x40)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], 0x40)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")
	binary.Write(&buf, binary.LittleEndian, fh)
	binary.Write(&buf, binary.LittleEndian, oh)
	binary.Write(&buf, binary.LittleEndian, sh)
	buf.Write(make([]byte, peFileAlignment-buf.Len()))
	buf.Write(rsrc)
	buf.Write(make([]byte, rawSize-len(rsrc)))
	return buf.Bytes()
}

func align(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}
