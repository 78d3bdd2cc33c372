package msgtable

// LANGIDs, MAKELANGID(primary, sublanguage)
const (
	LangNeutral       uint16 = 0x0000
	LangEnglishUS     uint16 = 0x0409
	LangUserDefault   uint16 = 0x0400
	LangSystemDefault uint16 = 0x0800
)

// MakeLangID builds a LANGID from a primary language and a sublanguage.
func MakeLangID(primary, sub uint16) uint16 {
	return sub<<10 | primary
}

// PrimaryLangID extracts the primary language of a LANGID.
func PrimaryLangID(lang uint16) uint16 {
	return lang & 0x3ff
}
