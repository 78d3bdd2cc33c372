//go:build windows

package msgtable

import (
	"runtime"

	"golang.org/x/sys/windows"
)

// isWow64Process reports whether this is a 32-bit process on 64-bit Windows.
func isWow64Process() bool {
	var wow64 bool
	if err := windows.IsWow64Process(windows.CurrentProcess(), &wow64); err != nil {
		return false
	}
	return wow64
}

// fsRedirectionGuard keeps WOW64 file system redirection disabled for the
// thread that created it until Release. Redirection is per thread, the
// goroutine stays locked to its thread in between.
type fsRedirectionGuard struct {
	old    uintptr
	active bool
}

// disableFsRedirection disables redirection on the current thread. The
// caller must Release the guard on the same goroutine.
func disableFsRedirection() (*fsRedirectionGuard, error) {
	runtime.LockOSThread()
	g := &fsRedirectionGuard{}
	if err := Wow64DisableWow64FsRedirection(&g.old); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	g.active = true
	LogTrace("wow64 file system redirection disabled")
	return g, nil
}

// Release restores redirection. Safe on a nil guard and when called twice.
func (g *fsRedirectionGuard) Release() error {
	if g == nil || !g.active {
		return nil
	}
	g.active = false
	defer runtime.UnlockOSThread()
	if err := Wow64RevertWow64FsRedirection(g.old); err != nil {
		return err
	}
	LogTrace("wow64 file system redirection restored")
	return nil
}
