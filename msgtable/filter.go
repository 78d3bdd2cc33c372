package msgtable

import (
	"log/slog"
	"strconv"

	"github.com/0xrawsec/golang-utils/datastructs"
)

// LanguageFilter selects which resource languages of a message table are
// decoded. A nil or empty filter accepts every language.
type LanguageFilter struct {
	langs []uint16
	set   *datastructs.Set
}

// NewLanguageFilter creates a filter accepting the given LANGIDs.
func NewLanguageFilter(langs ...uint16) *LanguageFilter {
	f := &LanguageFilter{langs: langs}
	if len(langs) > 0 {
		s := datastructs.ToInterfaceSlice(langs)
		f.set = datastructs.NewInitSet(s...)
	}
	return f
}

// CurrentLanguageFilter accepts only the user default UI language, the one
// Event Viewer would render messages in.
func CurrentLanguageFilter() *LanguageFilter {
	return NewLanguageFilter(CurrentUILanguage())
}

// Match must return true if the language has to be decoded.
func (f *LanguageFilter) Match(lang uint16) bool {
	if f == nil || f.set == nil || f.set.Len() == 0 {
		return true
	}
	return f.set.Contains(lang)
}

// Languages returns the accepted LANGIDs, empty when any language matches.
func (f *LanguageFilter) Languages() []uint16 {
	if f == nil {
		return nil
	}
	return append([]uint16(nil), f.langs...)
}

func (f *LanguageFilter) LogValue() slog.Value {
	if f == nil || len(f.langs) == 0 {
		return slog.StringValue("any")
	}
	s := ""
	for i, l := range f.langs {
		if i > 0 {
			s += ","
		}
		s += "0x" + strconv.FormatUint(uint64(l), 16)
	}
	return slog.StringValue(s)
}
