// Package testutils provides utilities for testing Prose code in Go.
package testutils

import (
	"math"
	"os"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v2"

	"github.com/proselang/prose"
	"github.com/proselang/prose/parse"
)

// testVM is the VM used for all tests.
var testVM *prose.VM

var testVMInit sync.Once

// TestingVM returns a VM for testing Prose. The VM is shared by all tests
// that use this package.
func TestingVM() *prose.VM {
	testVMInit.Do(ResetTestingVM)
	return testVM
}

// ResetTestingVM reinitializes the VM returned by TestingVM. It is not safe
// to call in parallel tests.
func ResetTestingVM() {
	vm, err := prose.NewVM(prose.DefaultConfig())
	if err != nil {
		panic(err)
	}
	testVM = vm
}

// A SourceTestCase is a test case containing Prose source code and a
// predicate to check the result.
type SourceTestCase struct {
	// Source is the Prose source code to execute.
	Source string
	// Pass is a predicate taking the result of executing Source. If Pass
	// returns false, then the test fails.
	Pass func(result prose.Value, err *prose.RuntimeError) bool
}

// TestFunc returns a test function for the test case. This uses TestingVM
// to parse and execute the code.
func (c SourceTestCase) TestFunc(name string) func(*testing.T) {
	return func(t *testing.T) {
		vm := TestingVM()
		script, err := parse.Parse(strings.NewReader(c.Source), name)
		if err != nil {
			t.Fatalf("could not parse %q: %v", c.Source, err)
		}
		r, rerr := vm.ExecuteScript(script)
		if !c.Pass(r, rerr) {
			if rerr != nil {
				w := strings.Builder{}
				rerr.Report(&w)
				t.Errorf("%q produced wrong result; an error occurred:\n%s", c.Source, w.String())
			} else {
				t.Errorf("%q produced wrong result; got %s", c.Source, vm.Format(r))
			}
		}
	}
}

// PassInt returns a Pass function that predicates on an integer result.
func PassInt(want int64) func(prose.Value, *prose.RuntimeError) bool {
	return func(result prose.Value, err *prose.RuntimeError) bool {
		return err == nil && result.IsInt() && result.Int() == want
	}
}

// PassFloat returns a Pass function that predicates on a float result,
// comparing after tag rounding.
func PassFloat(want float64) func(prose.Value, *prose.RuntimeError) bool {
	tagged := prose.TagFloat(want).Float()
	return func(result prose.Value, err *prose.RuntimeError) bool {
		if err != nil || !result.IsFloat() {
			return false
		}
		got := result.Float()
		return got == tagged || math.Abs(got-tagged) < 1e-9
	}
}

// PassString returns a Pass function that predicates on a string result.
func PassString(want string) func(prose.Value, *prose.RuntimeError) bool {
	return func(result prose.Value, err *prose.RuntimeError) bool {
		return err == nil && TestingVM().Format(result) == want
	}
}

// PassRendered returns a Pass function that predicates on the VM rendering
// of the result, covering nil, true, false, and object summaries.
func PassRendered(want string) func(prose.Value, *prose.RuntimeError) bool {
	return PassString(want)
}

// PassError returns a Pass function that predicates on a runtime error
// whose message contains the given substring.
func PassError(substr string) func(prose.Value, *prose.RuntimeError) bool {
	return func(result prose.Value, err *prose.RuntimeError) bool {
		return err != nil && strings.Contains(err.Message, substr)
	}
}

// A FileCase is one entry of a YAML case table: a name, source code, and
// exactly one expectation.
type FileCase struct {
	Name   string   `yaml:"name"`
	Source string   `yaml:"source"`
	Int    *int64   `yaml:"int"`
	Float  *float64 `yaml:"float"`
	Result *string  `yaml:"result"`
	Error  *string  `yaml:"error"`
}

// RunFileCases runs every case in a YAML table file as a subtest.
func RunFileCases(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("could not read %s: %v", path, err)
	}
	var cases []FileCase
	if err := yaml.Unmarshal(b, &cases); err != nil {
		t.Fatalf("could not decode %s: %v", path, err)
	}
	for _, c := range cases {
		var pass func(prose.Value, *prose.RuntimeError) bool
		switch {
		case c.Int != nil:
			pass = PassInt(*c.Int)
		case c.Float != nil:
			pass = PassFloat(*c.Float)
		case c.Result != nil:
			pass = PassRendered(*c.Result)
		case c.Error != nil:
			pass = PassError(*c.Error)
		default:
			t.Fatalf("case %q in %s has no expectation", c.Name, path)
		}
		t.Run(c.Name, SourceTestCase{Source: c.Source, Pass: pass}.TestFunc(c.Name))
	}
}
