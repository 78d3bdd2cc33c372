//go:build windows

//lint:file-ignore U1000 exports

package msgtable

import (
	"golang.org/x/sys/windows"
)

// Procs golang.org/x/sys/windows does not wrap.
var (
	kernel32                       = windows.NewLazySystemDLL("kernel32.dll")
	enumResourceTypesW             = kernel32.NewProc("EnumResourceTypesW")
	enumResourceNamesW             = kernel32.NewProc("EnumResourceNamesW")
	enumResourceLanguagesW         = kernel32.NewProc("EnumResourceLanguagesW")
	findResourceExW                = kernel32.NewProc("FindResourceExW")
	getUserDefaultUILanguage       = kernel32.NewProc("GetUserDefaultUILanguage")
	wow64DisableWow64FsRedirection = kernel32.NewProc("Wow64DisableWow64FsRedirection")
	wow64RevertWow64FsRedirection  = kernel32.NewProc("Wow64RevertWow64FsRedirection")
)
