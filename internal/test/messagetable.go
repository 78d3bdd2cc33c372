// Package test builds synthetic message tables, resource sections and PE
// images for the msgtable tests.
package test

import (
	"encoding/binary"
	"unicode/utf16"
)

// Entry is one MESSAGE_RESOURCE_ENTRY. Text is NUL terminated and padded to
// a 4 byte boundary like mc.exe does.
type Entry struct {
	Text    string
	Unicode bool
	// Flags overrides the flags derived from Unicode.
	Flags *uint16
	// Length overrides the declared entry length. The text is truncated or
	// zero padded so the entry really spans Length bytes.
	Length uint16
}

// Block is one MESSAGE_RESOURCE_BLOCK with the entries for ids Low..High.
type Block struct {
	Low, High uint32
	Entries   []Entry
	// Offset overrides the computed OffsetToEntries.
	Offset *uint32
}

// MessageTable is a MESSAGE_RESOURCE_DATA.
type MessageTable struct {
	Blocks []Block
	// NumberOfBlocks overrides len(Blocks).
	NumberOfBlocks *uint32
}

// Flags returns a pointer to f, for Entry.Flags.
func Flags(f uint16) *uint16 {
	return &f
}

// Offset returns a pointer to o, for Block.Offset.
func Offset(o uint32) *uint32 {
	return &o
}

// ANSI creates len(texts) ANSI entries.
func ANSI(texts ...string) []Entry {
	entries := make([]Entry, len(texts))
	for i, t := range texts {
		entries[i] = Entry{Text: t}
	}
	return entries
}

// Unicode creates len(texts) UTF-16 entries.
func Unicode(texts ...string) []Entry {
	entries := make([]Entry, len(texts))
	for i, t := range texts {
		entries[i] = Entry{Text: t, Unicode: true}
	}
	return entries
}

// Bytes encodes the entry.
func (e Entry) Bytes() []byte {
	var text []byte
	if e.Unicode {
		for _, u := range utf16.Encode([]rune(e.Text)) {
			text = binary.LittleEndian.AppendUint16(text, u)
		}
		text = append(text, 0, 0)
	} else {
		text = append([]byte(e.Text), 0)
	}
	for len(text)%4 != 0 {
		text = append(text, 0)
	}

	length := uint16(4 + len(text))
	if e.Length != 0 {
		length = e.Length
		size := max(int(length)-4, 0)
		if len(text) > size {
			text = text[:size]
		}
		for len(text) < size {
			text = append(text, 0)
		}
	}

	flags := uint16(0)
	if e.Unicode {
		flags = 1
	}
	if e.Flags != nil {
		flags = *e.Flags
	}

	b := make([]byte, 0, 4+len(text))
	b = binary.LittleEndian.AppendUint16(b, length)
	b = binary.LittleEndian.AppendUint16(b, flags)
	return append(b, text...)
}

// Bytes encodes the table: header, block array, then the entries of every
// block in order.
func (m MessageTable) Bytes() []byte {
	n := uint32(len(m.Blocks))
	if m.NumberOfBlocks != nil {
		n = *m.NumberOfBlocks
	}

	entries := make([][]byte, len(m.Blocks))
	offset := uint32(4 + 12*len(m.Blocks))
	offsets := make([]uint32, len(m.Blocks))
	for i, blk := range m.Blocks {
		offsets[i] = offset
		for _, e := range blk.Entries {
			entries[i] = append(entries[i], e.Bytes()...)
		}
		offset += uint32(len(entries[i]))
	}

	b := binary.LittleEndian.AppendUint32(nil, n)
	for i, blk := range m.Blocks {
		off := offsets[i]
		if blk.Offset != nil {
			off = *blk.Offset
		}
		b = binary.LittleEndian.AppendUint32(b, blk.Low)
		b = binary.LittleEndian.AppendUint32(b, blk.High)
		b = binary.LittleEndian.AppendUint32(b, off)
	}
	for _, e := range entries {
		b = append(b, e...)
	}
	return b
}
