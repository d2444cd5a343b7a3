//go:build windows

package progress

import (
	"os"

	"golang.org/x/sys/windows"
)

// enableANSIOnWindows turns on virtual terminal processing so mpb's escape
// sequences render in cmd.exe and PowerShell.
func enableANSIOnWindows(f *os.File) {
	handle := windows.Handle(f.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err == nil {
		_ = windows.SetConsoleMode(handle, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
	}
}
