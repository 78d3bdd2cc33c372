package msgtable

import (
	"fmt"
	"testing"

	"github.com/0xrawsec/toast"
	"golang.org/x/text/encoding/charmap"

	"github.com/tekert/golang-msgtable/internal/test"
	"github.com/tekert/golang-msgtable/logsampler"
)

func message(id uint32) string {
	return fmt.Sprintf("Message number %d of the test module.\r\n", id)
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, unicode := range []bool{false, true} {
		t.Run(fmt.Sprintf("unicode=%t", unicode), func(t *testing.T) {
			tt := toast.FromT(t)

			const nBlocks, perBlock = 4, 7
			var mt test.MessageTable
			var want []uint32
			for b := uint32(0); b < nBlocks; b++ {
				low := 1000*b + 1
				blk := test.Block{Low: low, High: low + perBlock - 1}
				for id := blk.Low; id <= blk.High; id++ {
					blk.Entries = append(blk.Entries, test.Entry{Text: message(id), Unicode: unicode})
					want = append(want, id)
				}
				mt.Blocks = append(mt.Blocks, blk)
			}

			records, stats, err := DecodeMessageTable(mt.Bytes(), "System", "Test Source")
			tt.CheckErr(err)
			tt.Assert(len(records) == nBlocks*perBlock, "got %d records", len(records))
			tt.Assert(stats.Blocks == nBlocks)
			tt.Assert(stats.Records == len(records))
			tt.Assert(stats.Short == 0 && stats.Malformed == 0 && stats.BadFlags == 0)

			for i, r := range records {
				tt.Assert(r.ID.Value() == want[i], "record %d has id %s", i, r.ID)
				tt.Assert(r.Text == message(want[i]), "record %d: %q", i, r.Text)
				tt.Assert(r.Log == "System" && r.Source == "Test Source")
			}
		})
	}
}

func TestDecodeSingleIDBlock(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	mt := test.MessageTable{Blocks: []test.Block{
		{Low: 42, High: 42, Entries: test.ANSI("The answer to everything.")},
	}}
	records, _, err := DecodeMessageTable(mt.Bytes(), "Application", "Deep Thought")
	tt.CheckErr(err)
	tt.Assert(len(records) == 1)
	tt.Assert(records[0].ID == 42)
	tt.Assert(records[0].EventID() == 42)
	tt.Assert(records[0].Text == "The answer to everything.")
}

func TestDecodeShortEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry test.Entry
	}{
		{"ansi at threshold", test.Entry{Text: "7 chars", Length: 12}},
		{"ansi below threshold", test.Entry{Text: "short", Length: 8}},
		{"ansi flags 0 length 10", test.Entry{Text: "abcdef", Flags: test.Flags(0), Length: 10}},
		{"unicode at threshold", test.Entry{Text: "5char", Unicode: true, Length: 16}},
		{"unicode empty", test.Entry{Text: "", Unicode: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tt := toast.FromT(t)

			// the short entry sits between two good ones, the decoder must step
			// over it and keep going
			mt := test.MessageTable{Blocks: []test.Block{{
				Low: 100, High: 102,
				Entries: []test.Entry{
					{Text: "First message of the block."},
					tc.entry,
					{Text: "Third message of the block.", Unicode: true},
				},
			}}}

			records, stats, err := DecodeMessageTable(mt.Bytes(), "l", "s")
			tt.CheckErr(err)
			tt.Assert(stats.Short == 1, "short = %d", stats.Short)
			tt.Assert(len(records) == 2, "got %d records", len(records))
			tt.Assert(records[0].ID == 100 && records[0].Text == "First message of the block.")
			tt.Assert(records[1].ID == 102 && records[1].Text == "Third message of the block.")
		})
	}
}

func TestDecodeMinimumLengthKept(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	// one byte over each threshold
	mt := test.MessageTable{Blocks: []test.Block{{
		Low: 1, High: 2,
		Entries: []test.Entry{
			{Text: "8 chars!", Length: 13},
			{Text: "6chars", Unicode: true, Length: 17},
		},
	}}}
	records, stats, err := DecodeMessageTable(mt.Bytes(), "l", "s")
	tt.CheckErr(err)
	tt.Assert(stats.Short == 0)
	tt.Assert(len(records) == 2)
	tt.Assert(records[0].Text == "8 chars!")
	tt.Assert(records[1].Text == "6chars")
}

func TestDecodeReservedIDs(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	mt := test.MessageTable{Blocks: []test.Block{
		// reserved, not customer: skipped
		{Low: 0x10000001, High: 0x10000002, Entries: test.ANSI("Compiled string resource one.", "Compiled string resource two.")},
		// reserved and customer: kept
		{Low: 0x30000001, High: 0x30000001, Entries: test.Unicode("Customer message with N set.")},
		// neither
		{Low: 0x40000005, High: 0x40000005, Entries: test.Unicode("Plain informational message.")},
	}}

	records, stats, err := DecodeMessageTable(mt.Bytes(), "l", "s")
	tt.CheckErr(err)
	tt.Assert(stats.Reserved == 2)
	tt.Assert(len(records) == 2)
	tt.Assert(records[0].ID == 0x30000001 && records[0].ID.IsCustomer() && records[0].ID.IsReserved())
	tt.Assert(records[1].ID == 0x40000005)
	tt.Assert(records[1].ID.Severity() == SeverityInformational)
}

func TestDecodeBadFlags(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	mt := test.MessageTable{Blocks: []test.Block{{
		Low: 10, High: 12,
		Entries: []test.Entry{
			{Text: "Before the odd entry."},
			{Text: "Entry with unknown flags.", Flags: test.Flags(2)},
			{Text: "After the odd entry."},
		},
	}}}

	records, stats, err := DecodeMessageTable(mt.Bytes(), "l", "s", WithSampler(logsampler.NewBurstSampler(1, nil)))
	tt.CheckErr(err)
	tt.Assert(stats.BadFlags == 1)
	tt.Assert(len(records) == 3)
	tt.Assert(records[1].ID == 11 && records[1].Text == "")
	tt.Assert(records[2].Text == "After the odd entry.")
}

func TestDecodeText(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	mt := test.MessageTable{Blocks: []test.Block{{
		Low: 1, High: 3,
		Entries: []test.Entry{
			{Text: "caf\xe9 au lait %1\r\n"},
			{Text: "Unicode événement \U0001F600 %1\r\n", Unicode: true},
			// padded with many NULs
			{Text: "Padded message text", Length: 64},
		},
	}}}

	records, _, err := DecodeMessageTable(mt.Bytes(), "l", "s")
	tt.CheckErr(err)
	tt.Assert(len(records) == 3)
	tt.Assert(records[0].Text == "café au lait %1\r\n", "%q", records[0].Text)
	tt.Assert(records[1].Text == "Unicode événement \U0001F600 %1\r\n", "%q", records[1].Text)
	tt.Assert(records[2].Text == "Padded message text")

	// same bytes read with another code page
	records, _, err = DecodeMessageTable(mt.Bytes(), "l", "s", WithANSIEncoding(charmap.ISO8859_7))
	tt.CheckErr(err)
	tt.Assert(records[0].Text == "cafι au lait %1\r\n", "%q", records[0].Text)
}

func TestDecodeCorruptTables(t *testing.T) {
	t.Parallel()

	good := test.Block{Low: 1, High: 2, Entries: test.ANSI("A good message text.", "Another good message.")}

	t.Run("no header", func(t *testing.T) {
		tt := toast.FromT(t)
		for _, raw := range [][]byte{nil, {}, {1, 0, 0}} {
			_, _, err := DecodeMessageTable(raw, "l", "s")
			tt.ExpectErr(err, ErrCorruptTable)
		}
	})

	t.Run("no blocks", func(t *testing.T) {
		tt := toast.FromT(t)
		records, stats, err := DecodeMessageTable([]byte{0, 0, 0, 0}, "l", "s")
		tt.CheckErr(err)
		tt.Assert(len(records) == 0 && stats.Blocks == 0)
	})

	t.Run("block count past buffer", func(t *testing.T) {
		tt := toast.FromT(t)
		mt := test.MessageTable{Blocks: []test.Block{good}, NumberOfBlocks: test.Offset(0xFFFFFFFF)}
		records, stats, err := DecodeMessageTable(mt.Bytes(), "l", "s")
		tt.CheckErr(err)
		tt.Assert(stats.Malformed > 0)
		// the real block is among the ones that fit
		tt.Assert(len(records) >= 2)
		tt.Assert(records[0].Text == "A good message text.")
	})

	t.Run("inverted range", func(t *testing.T) {
		tt := toast.FromT(t)
		mt := test.MessageTable{Blocks: []test.Block{
			{Low: 9, High: 3, Entries: test.ANSI("Never decoded message.")},
			good,
		}}
		records, stats, err := DecodeMessageTable(mt.Bytes(), "l", "s")
		tt.CheckErr(err)
		tt.Assert(stats.Malformed == 1)
		tt.Assert(len(records) == 2)
		tt.Assert(records[0].ID == 1)
	})

	t.Run("offset out of range", func(t *testing.T) {
		tt := toast.FromT(t)
		mt := test.MessageTable{Blocks: []test.Block{
			{Low: 5, High: 5, Offset: test.Offset(1 << 20)},
			{Low: 6, High: 6, Offset: test.Offset(0)},
			good,
		}}
		records, stats, err := DecodeMessageTable(mt.Bytes(), "l", "s")
		tt.CheckErr(err)
		tt.Assert(stats.Malformed == 2)
		tt.Assert(len(records) == 2)
	})

	t.Run("entry past buffer", func(t *testing.T) {
		tt := toast.FromT(t)
		mt := test.MessageTable{Blocks: []test.Block{{
			Low: 1, High: 3,
			Entries: test.ANSI("A good message text.", "Another good message."),
		}}}
		records, stats, err := DecodeMessageTable(mt.Bytes(), "l", "s")
		tt.CheckErr(err)
		tt.Assert(len(records) == 2)
		tt.Assert(stats.Malformed == 1)

		raw := mt.Bytes()
		// entry length larger than what is left
		raw[4+12] = 0xFF
		raw[4+12+1] = 0x7F
		records, _, err = DecodeMessageTable(raw, "l", "s")
		tt.CheckErr(err)
		tt.Assert(len(records) == 0)
	})

	t.Run("zero length entry", func(t *testing.T) {
		tt := toast.FromT(t)
		mt := test.MessageTable{Blocks: []test.Block{{
			Low: 1, High: 2,
			Entries: []test.Entry{{Text: "Ends the block.", Length: 2}, {Text: "Unreachable message."}},
		}}}
		records, stats, err := DecodeMessageTable(mt.Bytes(), "l", "s")
		tt.CheckErr(err)
		tt.Assert(len(records) == 0)
		tt.Assert(stats.Malformed == 1)
	})
}

func TestDecodeLastID(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	mt := test.MessageTable{Blocks: []test.Block{{
		Low: 0xFFFFFFFE, High: 0xFFFFFFFF,
		Entries: test.Unicode("Second to last message.", "Very last message id."),
	}}}
	records, _, err := DecodeMessageTable(mt.Bytes(), "l", "s")
	tt.CheckErr(err)
	tt.Assert(len(records) == 2)
	tt.Assert(records[1].ID == 0xFFFFFFFF)
}

func TestDecodeSampledDiagnostics(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	var entries []test.Entry
	for i := 0; i < 50; i++ {
		entries = append(entries, test.Entry{Text: "Entry with unknown flags.", Flags: test.Flags(7)})
	}
	mt := test.MessageTable{Blocks: []test.Block{{Low: 1, High: 50, Entries: entries}}}

	sampler := logsampler.NewBurstSampler(3, nil)
	_, stats, err := DecodeMessageTable(mt.Bytes(), "l", "s", WithSampler(sampler), WithModuleName("bad.dll"))
	tt.CheckErr(err)
	tt.Assert(stats.BadFlags == 50)
}
