package msgtable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/encoding"

	"github.com/tekert/golang-msgtable/logsampler"
)

// https://learn.microsoft.com/en-us/windows/win32/api/winnt/ns-winnt-message_resource_data
//
// typedef struct _MESSAGE_RESOURCE_DATA {
//   DWORD                  NumberOfBlocks;
//   MESSAGE_RESOURCE_BLOCK Blocks[1];
// } MESSAGE_RESOURCE_DATA, *PMESSAGE_RESOURCE_DATA;
//
// typedef struct _MESSAGE_RESOURCE_BLOCK {
//   DWORD LowId;
//   DWORD HighId;
//   DWORD OffsetToEntries;   // from the start of MESSAGE_RESOURCE_DATA
// } MESSAGE_RESOURCE_BLOCK, *PMESSAGE_RESOURCE_BLOCK;
//
// typedef struct _MESSAGE_RESOURCE_ENTRY {
//   WORD Length;             // whole entry, header included
//   WORD Flags;
//   BYTE Text[1];
// } MESSAGE_RESOURCE_ENTRY, *PMESSAGE_RESOURCE_ENTRY;
const (
	messageBlockSize       = 12
	messageEntryHeaderSize = 4

	// MESSAGE_RESOURCE_ENTRY.Flags
	messageEntryANSI    = 0x0000
	messageEntryUnicode = 0x0001

	// Entries not longer than these carry no real message.
	minEntryLengthANSI    = 0xC
	minEntryLengthUnicode = 0x10
)

var (
	// Returned when a buffer is too small to hold a MESSAGE_RESOURCE_DATA header.
	ErrCorruptTable = errors.New("corrupt message table")
)

// DecodeStats counts what happened to the entries of one message table.
type DecodeStats struct {
	Blocks   int // blocks visited
	Records  int // records produced
	Short    int // entries at or below the minimum length
	Reserved int // ids with the reserved bit and without the customer bit
	BadFlags int // entries with flags other than ANSI or Unicode, kept with empty text
	// Malformed counts blocks and entries that could not be walked, the rest
	// of their block is unreachable.
	Malformed int
}

func (s DecodeStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("blocks", s.Blocks),
		slog.Int("records", s.Records),
		slog.Int("short", s.Short),
		slog.Int("reserved", s.Reserved),
		slog.Int("badFlags", s.BadFlags),
		slog.Int("malformed", s.Malformed),
	)
}

type decodeConfig struct {
	ansi    encoding.Encoding
	sampler logsampler.Sampler
	module  string
}

// DecodeOption configures DecodeMessageTable.
type DecodeOption func(*decodeConfig)

// WithANSIEncoding sets the code page used for 8-bit entries.
func WithANSIEncoding(enc encoding.Encoding) DecodeOption {
	return func(c *decodeConfig) {
		if enc != nil {
			c.ansi = enc
		}
	}
}

// WithSampler limits the per-entry diagnostics the decoder logs.
func WithSampler(s logsampler.Sampler) DecodeOption {
	return func(c *decodeConfig) {
		if s != nil {
			c.sampler = s
		}
	}
}

// WithModuleName names the module in diagnostics and sampler keys.
func WithModuleName(name string) DecodeOption {
	return func(c *decodeConfig) {
		c.module = name
	}
}

// DecodeMessageTable parses a raw RT_MESSAGETABLE resource into records
// labeled with logName and sourceName. Records come out in block order and
// ascending id within a block.
//
// A bad entry never aborts the table: entries are stepped over with their own
// declared length so the rest of the block stays reachable. Only a buffer
// that cannot hold the block count fails with ErrCorruptTable.
func DecodeMessageTable(raw []byte, logName, sourceName string, opts ...DecodeOption) ([]MessageRecord, DecodeStats, error) {
	var stats DecodeStats

	cfg := decodeConfig{
		ansi:    defaultANSIEncoding,
		sampler: logsampler.Always{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := newCursor(raw, 0)
	numBlocks, err := c.Uint32()
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %d bytes, no block count: %w", ErrCorruptTable, len(raw), err)
	}

	// The block table must fit the buffer, keep the blocks that do.
	if fit := uint64(c.Remaining()) / messageBlockSize; uint64(numBlocks) > fit {
		cfg.warn("truncated", "message block table runs past the buffer",
			"declared", numBlocks, "fit", fit)
		stats.Malformed++
		numBlocks = uint32(fit)
	}

	records := make([]MessageRecord, 0, numBlocks)
	for i := range numBlocks {
		// Cannot fail, the table was checked above.
		lowID, _ := c.Uint32()
		highID, _ := c.Uint32()
		offset, _ := c.Uint32()
		stats.Blocks++

		if lowID > highID {
			cfg.warn("range", "message block has an inverted id range",
				"block", i, "lowId", lowID, "highId", highID)
			stats.Malformed++
			continue
		}
		if lowID == 0 && highID == 0 {
			cfg.debug("zero", "message block ids are both 0", "block", i)
		}

		records = cfg.decodeBlock(raw, i, lowID, highID, offset, logName, sourceName, records, &stats)
	}

	stats.Records = len(records)
	return records, stats, nil
}

func (cfg *decodeConfig) decodeBlock(
	raw []byte,
	block, lowID, highID, offset uint32,
	logName, sourceName string,
	records []MessageRecord,
	stats *DecodeStats) []MessageRecord {

	entries := newCursor(raw, 0)
	if err := entries.Seek(int(offset)); err != nil || offset == 0 {
		cfg.warn("offset", "message block entries are out of range",
			"block", block, "offset", offset, "size", len(raw))
		stats.Malformed++
		return records
	}

	// uint64 so a block ending at 0xFFFFFFFF terminates.
	for id := uint64(lowID); id <= uint64(highID); id++ {
		start := entries.Offset()
		length, err := entries.Uint16()
		if err != nil {
			cfg.debug("entry", "message entry header is out of range",
				"block", block, "id", StatusCode(id), "offset", start)
			stats.Malformed++
			return records
		}
		flags, err := entries.Uint16()
		if err != nil || length < messageEntryHeaderSize {
			cfg.debug("entry", "message entry length cannot be walked",
				"block", block, "id", StatusCode(id), "offset", start, "length", length)
			stats.Malformed++
			return records
		}
		text, err := entries.Peek(int(length) - messageEntryHeaderSize)
		if err != nil {
			cfg.debug("entry", "message entry runs past the buffer",
				"block", block, "id", StatusCode(id), "offset", start, "length", length)
			stats.Malformed++
			return records
		}
		// Always step over the entry by its own length, whatever we do with it.
		entries.Skip(len(text))

		if (flags == messageEntryANSI && length <= minEntryLengthANSI) ||
			(flags == messageEntryUnicode && length <= minEntryLengthUnicode) {
			stats.Short++
			cfg.trace("short", "message entry below minimum length",
				"id", StatusCode(id), "length", length, "flags", flags)
			continue
		}

		status := StatusCode(id)
		// Not a message by observation, string resources compiled into the table.
		if !status.IsCustomer() && status.IsReserved() {
			stats.Reserved++
			cfg.trace("reserved", "message entry id has the reserved bit", "id", status)
			continue
		}

		if status.Facility().Class() != FacilityDocumented {
			cfg.debug("facility", "message id uses an unknown facility",
				"id", status, "facility", status.Facility(), "class", status.Facility().Class())
		}

		var message string
		switch flags {
		case messageEntryANSI:
			message = decodeANSI(cfg.ansi, text)
		case messageEntryUnicode:
			message = decodeUTF16(text)
		default:
			stats.BadFlags++
			cfg.warn("flags", "message entry flags should be 0 or 1, message will be empty",
				"id", status, "flags", flags)
		}

		records = append(records, MessageRecord{
			Log:    logName,
			Source: sourceName,
			ID:     status,
			Text:   message,
		})
	}
	return records
}

func (cfg *decodeConfig) warn(kind, msg string, args ...any) {
	cfg.log(slog.LevelWarn, kind, msg, args)
}

func (cfg *decodeConfig) debug(kind, msg string, args ...any) {
	cfg.log(slog.LevelDebug, kind, msg, args)
}

func (cfg *decodeConfig) trace(kind, msg string, args ...any) {
	cfg.log(LogLevelTrace, kind, msg, args)
}

func (cfg *decodeConfig) log(level slog.Level, kind, msg string, args []any) {
	ctx := context.Background()
	if !slog.Default().Enabled(ctx, level) {
		return
	}
	if !cfg.sampler.ShouldLog(cfg.module + "|" + kind) {
		return
	}
	if cfg.module != "" {
		args = append(args, "module", cfg.module)
	}
	slog.Default().Log(ctx, level, msg, args...)
}
