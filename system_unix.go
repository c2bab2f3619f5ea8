//go:build unix

package prose

import (
	"golang.org/x/sys/unix"
)

// platformVersion reports the host kernel name and release for the
// _SystemPlatformVersion primitive. Platforms without a version syscall
// report an empty string (system_other.go).
func platformVersion() string {
	var u unix.Utsname
	if unix.Uname(&u) != nil {
		return ""
	}
	return unix.ByteSliceToString(u.Sysname[:]) + " " + unix.ByteSliceToString(u.Release[:])
}
