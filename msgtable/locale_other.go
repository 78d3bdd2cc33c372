//go:build !windows

package msgtable

// CurrentUILanguage returns en-US, offline images carry no user settings.
func CurrentUILanguage() uint16 {
	return LangEnglishUS
}
