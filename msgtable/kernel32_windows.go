//go:build windows

package msgtable

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// https://learn.microsoft.com/en-us/windows/win32/api/libloaderapi/nf-libloaderapi-enumresourcetypesw
// BOOL EnumResourceTypesW(
//   [in, optional] HMODULE          hModule,
//   [in]           ENUMRESTYPEPROCW lpEnumFunc,
//   [in]           LONG_PTR         lParam
// );

// Enumerates the resource types of a module, calling lpEnumFunc once per type.
func EnumResourceTypesW(hModule windows.Handle, lpEnumFunc uintptr, lParam uintptr) error {
	r1, _, err := enumResourceTypesW.Call(uintptr(hModule), lpEnumFunc, lParam)
	if r1 != 0 {
		return nil
	}
	return lastErrno(err)
}

// https://learn.microsoft.com/en-us/windows/win32/api/libloaderapi/nf-libloaderapi-enumresourcenamesw
// BOOL EnumResourceNamesW(
//   [in, optional] HMODULE          hModule,
//   [in]           LPCWSTR          lpType,
//   [in]           ENUMRESNAMEPROCW lpEnumFunc,
//   [in]           LONG_PTR         lParam
// );

// Enumerates the resources of type lpType, calling lpEnumFunc once per name.
func EnumResourceNamesW(hModule windows.Handle, lpType uintptr, lpEnumFunc uintptr, lParam uintptr) error {
	r1, _, err := enumResourceNamesW.Call(uintptr(hModule), lpType, lpEnumFunc, lParam)
	if r1 != 0 {
		return nil
	}
	return lastErrno(err)
}

// https://learn.microsoft.com/en-us/windows/win32/api/libloaderapi/nf-libloaderapi-enumresourcelanguagesw
// BOOL EnumResourceLanguagesW(
//   [in] HMODULE          hModule,
//   [in] LPCWSTR          lpType,
//   [in] LPCWSTR          lpName,
//   [in] ENUMRESLANGPROCW lpEnumFunc,
//   [in] LONG_PTR         lParam
// );

// Enumerates the languages of resource (lpType, lpName).
func EnumResourceLanguagesW(hModule windows.Handle, lpType, lpName uintptr, lpEnumFunc uintptr, lParam uintptr) error {
	r1, _, err := enumResourceLanguagesW.Call(uintptr(hModule), lpType, lpName, lpEnumFunc, lParam)
	if r1 != 0 {
		return nil
	}
	return lastErrno(err)
}

// https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-findresourceexw
// HRSRC FindResourceExW(
//   [in, optional] HMODULE hModule,
//   [in]           LPCWSTR lpType,
//   [in]           LPCWSTR lpName,
//   [in]           WORD    wLanguage
// );

// Locates the resource (lpType, lpName) in language wLanguage.
func FindResourceExW(hModule windows.Handle, lpType, lpName uintptr, wLanguage uint16) (windows.Handle, error) {
	r1, _, err := findResourceExW.Call(uintptr(hModule), lpType, lpName, uintptr(wLanguage))
	if r1 != 0 {
		return windows.Handle(r1), nil
	}
	return 0, lastErrno(err)
}

// https://learn.microsoft.com/en-us/windows/win32/api/winnls/nf-winnls-getuserdefaultuilanguage
// LANGID GetUserDefaultUILanguage();
func GetUserDefaultUILanguage() uint16 {
	r1, _, _ := getUserDefaultUILanguage.Call()
	return uint16(r1)
}

// https://learn.microsoft.com/en-us/windows/win32/api/wow64apiset/nf-wow64apiset-wow64disablewow64fsredirection
// BOOL Wow64DisableWow64FsRedirection(
//   [out] PVOID *OldValue
// );

// Disables file system redirection for the calling thread. Fails with
// ERROR_INVALID_FUNCTION in a native process.
func Wow64DisableWow64FsRedirection(oldValue *uintptr) error {
	if err := wow64DisableWow64FsRedirection.Find(); err != nil {
		return err
	}
	r1, _, err := wow64DisableWow64FsRedirection.Call(uintptr(unsafe.Pointer(oldValue)))
	if r1 != 0 {
		return nil
	}
	return lastErrno(err)
}

// https://learn.microsoft.com/en-us/windows/win32/api/wow64apiset/nf-wow64apiset-wow64revertwow64fsredirection
// BOOL Wow64RevertWow64FsRedirection(
//   [in] PVOID OlValue
// );

// Restores the redirection state saved by Wow64DisableWow64FsRedirection.
func Wow64RevertWow64FsRedirection(oldValue uintptr) error {
	if err := wow64RevertWow64FsRedirection.Find(); err != nil {
		return err
	}
	r1, _, err := wow64RevertWow64FsRedirection.Call(oldValue)
	if r1 != 0 {
		return nil
	}
	return lastErrno(err)
}

// lastErrno keeps the Errno of a failed call, Proc.Call always returns a
// non nil error.
func lastErrno(err error) error {
	if errno, ok := err.(syscall.Errno); ok && errno != 0 {
		return errno
	}
	return syscall.EINVAL
}
