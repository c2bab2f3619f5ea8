//go:build windows

package prose

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// platformVersion reports the Windows kernel version for the
// _SystemPlatformVersion primitive.
func platformVersion() string {
	major, minor, build := windows.RtlGetNtVersionNumbers()
	return fmt.Sprintf("Windows %d.%d.%d", major, minor, build)
}
