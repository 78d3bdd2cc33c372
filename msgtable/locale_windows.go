//go:build windows

package msgtable

// CurrentUILanguage returns the LANGID of the user default UI language.
func CurrentUILanguage() uint16 {
	if err := getUserDefaultUILanguage.Find(); err != nil {
		return LangEnglishUS
	}
	return GetUserDefaultUILanguage()
}
