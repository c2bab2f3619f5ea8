package prose

import (
	"fmt"
	"math"
	"os"
	"time"

	"gitlab.com/variadico/lctime"

	"github.com/proselang/prose/ast"
	"github.com/proselang/prose/parse"
)

// SystemCollect is a system primitive.
//
// _Collect forces a minor collection and returns the total number of
// scavenges performed so far.
func SystemCollect(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	vm.heap.Scavenge()
	return normal(TagInt(int64(vm.heap.Stats().Scavenges)))
}

// SystemHeapStats is a system primitive.
//
// _HeapStats returns a one-line summary of collector activity.
func SystemHeapStats(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	s := vm.heap.Stats()
	line := fmt.Sprintf("scavenges %d promotions %d eden %dB old %dB survived %dB refs %d",
		s.Scavenges, s.Promotions, s.EdenUsed, s.OldUsed, s.Survived, s.LiveRefs)
	return vm.newString([]byte(line), rng)
}

// SystemTimeNow is a system primitive.
//
// _TimeNow returns the current time as float seconds since the Unix epoch.
func SystemTimeNow(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return normal(TagFloat(float64(time.Now().UnixNano()) / 1e9))
}

// SystemTimeFormat is a system primitive.
//
// _TimeFormat: formats the argument, float or integer seconds since the
// Unix epoch, using the receiver as an strftime format string.
func SystemTimeFormat(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	format, c, ok := vm.bytesReceiver("_TimeFormat:", recv, rng)
	if !ok {
		return c
	}
	secs, c, ok := vm.numberArg("_TimeFormat:", args, 0, rng)
	if !ok {
		return c
	}
	sec, frac := math.Modf(secs)
	t := time.Unix(int64(sec), int64(frac*1e9))
	return vm.newString([]byte(lctime.Strftime(string(format), t)), rng)
}

// SystemPlatform is a system primitive.
//
// _SystemPlatformVersion returns the operating system version string, or an
// empty string where it cannot be determined.
func SystemPlatform(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return vm.newString([]byte(platformVersion()), rng)
}

// SystemRunScript is a system primitive.
//
// _RunScript: parses the file named by the argument and executes it as a
// sub-script in the context of the current activation, returning the value
// of its last statement.
func SystemRunScript(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	path, c, ok := vm.stringArg("_RunScript:", args, 0, rng)
	if !ok {
		return c
	}
	f, err := os.Open(string(path))
	if err != nil {
		return vm.Raisef(rng, "_RunScript: %v", err)
	}
	defer f.Close()
	script, err := parse.Parse(f, string(path))
	if err != nil {
		return vm.Raisef(rng, "_RunScript: %v", err)
	}
	return vm.ExecuteSubScript(script)
}
