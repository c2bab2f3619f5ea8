package prose_test

import (
	"strings"
	"testing"

	"github.com/proselang/prose"
	"github.com/proselang/prose/parse"
	"github.com/proselang/prose/testutils"
)

func TestEvalLiterals(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"integer":       {Source: `42`, Pass: testutils.PassInt(42)},
		"negative":      {Source: `-17`, Pass: testutils.PassInt(-17)},
		"hex":           {Source: `0x2a`, Pass: testutils.PassInt(42)},
		"float":         {Source: `1.5`, Pass: testutils.PassFloat(1.5)},
		"string":        {Source: `'hello'`, Pass: testutils.PassString("hello")},
		"escape":        {Source: `'a\nb'`, Pass: testutils.PassString("a\nb")},
		"nil":           {Source: `nil`, Pass: testutils.PassString("nil")},
		"comment":       {Source: `"ignored" 7`, Pass: testutils.PassInt(7)},
		"lastStatement": {Source: `1. 2. 3`, Pass: testutils.PassInt(3)},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

func TestEvalArithmetic(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"add":        {Source: `2 + 3`, Pass: testutils.PassInt(5)},
		"chain":      {Source: `2 + 3 * 4`, Pass: testutils.PassInt(20)},
		"sub":        {Source: `10 - 4`, Pass: testutils.PassInt(6)},
		"div":        {Source: `9 / 2`, Pass: testutils.PassInt(4)},
		"mod":        {Source: `9 % 4`, Pass: testutils.PassInt(1)},
		"promote":    {Source: `1 + 0.5`, Pass: testutils.PassFloat(1.5)},
		"floatMul":   {Source: `1.5 * 2.0`, Pass: testutils.PassFloat(3)},
		"compare":    {Source: `2 < 3`, Pass: testutils.PassString("true")},
		"compareGe":  {Source: `2 >= 3`, Pass: testutils.PassString("false")},
		"divByZero":  {Source: `1 / 0`, Pass: testutils.PassError("division by zero")},
		"asFloat":    {Source: `3 asFloat`, Pass: testutils.PassFloat(3)},
		"floatFloor": {Source: `2.75 floor`, Pass: testutils.PassFloat(2)},
		"paren":      {Source: `(2 + 3) * 4`, Pass: testutils.PassInt(20)},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

// Scenario: a slots object with two constant slots answers each one.
func TestSlotsObject(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"firstConstant":  {Source: `(| x = 3. y = 4 |) x`, Pass: testutils.PassInt(3)},
		"secondConstant": {Source: `(| x = 3. y = 4 |) y`, Pass: testutils.PassInt(4)},
		"miss":           {Source: `(| x = 3 |) z`, Pass: testutils.PassError("did not understand")},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

// Scenario: a keyword method activates with bound arguments.
func TestMethodActivation(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"addWith": {
			Source: `(| add: a With: b = (a + b) |) add: 2 With: 3`,
			Pass:   testutils.PassInt(5),
		},
		"unaryMethod": {
			Source: `(| seven = (7) |) seven`,
			Pass:   testutils.PassInt(7),
		},
		"binaryMethodSlot": {
			Source: `(| ++ x = (x + 1) |) ++ 9`,
			Pass:   testutils.PassInt(10),
		},
		"selfSlotFromMethod": {
			Source: `(| k = 11. get = (k) |) get`,
			Pass:   testutils.PassInt(11),
		},
		"tooManyArguments": {
			Source: `(| one: a = (a) |) one: 1 With: 2`,
			Pass:   testutils.PassError("did not understand"),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

// Scenario: assignment through the name: selector writes the receiver's
// mutable slot.
func TestAssignment(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"assignReturnsValue": {
			Source: `(| x <- 1. set: v = (x: v) |) set: 42`,
			Pass:   testutils.PassInt(42),
		},
		"assignPersists": {
			Source: `(| o = (| x <- 1. set: v = (x: v). get = (x) |). go = (o set: 42. o get) |) go`,
			Pass:   testutils.PassInt(42),
		},
		"assignSticks": {
			Source: `(| x <- 1. bump = (x: x + 10. x: x + 100. x) |) bump`,
			Pass:   testutils.PassInt(111),
		},
		"assignConstantFails": {
			Source: `(| x = 1. set: v = (x: v) |) set: 2`,
			Pass:   testutils.PassError("did not understand"),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

// Scenario: a non-local return unwinds to the enclosing method.
func TestNonLocalReturn(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"blockUnwinds": {
			Source: `(| foo = ([ ^ 7 ] value + 1000) |) foo`,
			Pass:   testutils.PassInt(7),
		},
		"methodEarlyReturn": {
			Source: `(| foo = (^ 1. 2) |) foo`,
			Pass:   testutils.PassInt(1),
		},
		"topLevelReturn": {
			Source: `^ 5`,
			Pass:   testutils.PassInt(5),
		},
		"blockValue": {
			Source: `[ 3 + 4 ] value`,
			Pass:   testutils.PassInt(7),
		},
		"blockArgs": {
			Source: `[ :a :b | a * b ] value: 6 With: 7`,
			Pass:   testutils.PassInt(42),
		},
		"blockSeesHome": {
			Source: `(| n = 5. go = ([ n + 1 ] value) |) go`,
			Pass:   testutils.PassInt(6),
		},
		"blockWrongArity": {
			Source: `[ :a | a ] value`,
			Pass:   testutils.PassError("block expects"),
		},
		"staleBlock": {
			Source: `(| leak = ([ ^ 1 ]) |) leak value`,
			Pass:   testutils.PassError("home method returned"),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

func TestBooleans(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"ifTrue":      {Source: `(2 < 3) ifTrue: [ 1 ] IfFalse: [ 2 ]`, Pass: testutils.PassInt(1)},
		"ifFalse":     {Source: `(3 < 2) ifTrue: [ 1 ] IfFalse: [ 2 ]`, Pass: testutils.PassInt(2)},
		"notTrue":     {Source: `true not`, Pass: testutils.PassString("false")},
		"notFalse":    {Source: `false not`, Pass: testutils.PassString("true")},
		"ifTrueAlone": {Source: `(1 == 1) ifTrue: [ 9 ]`, Pass: testutils.PassInt(9)},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

func TestStrings(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"size":   {Source: `'hello' size`, Pass: testutils.PassInt(5)},
		"at":     {Source: `'abc' at: 1`, Pass: testutils.PassString("b")},
		"concat": {Source: `'foo' concat: 'bar'`, Pass: testutils.PassString("foobar")},
		"upper":  {Source: `'mixed Case' asUppercase`, Pass: testutils.PassString("MIXED CASE")},
		"lower":  {Source: `'MIXED Case' asLowercase`, Pass: testutils.PassString("mixed case")},
		"eq":     {Source: `'a' == 'a'`, Pass: testutils.PassString("true")},
		"range":  {Source: `'abc' at: 9`, Pass: testutils.PassError("out of range")},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

func TestParentLookupThroughObjects(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"parentSlot": {
			Source: `(| p* = (| shared = 13 |) |) shared`,
			Pass:   testutils.PassInt(13),
		},
		"directWins": {
			Source: `(| p* = (| v = 1 |). v = 2 |) v`,
			Pass:   testutils.PassInt(2),
		},
		"grandparent": {
			Source: `(| p* = (| q* = (| deep = 3 |) |) |) deep`,
			Pass:   testutils.PassInt(3),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

func TestAddSlots(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"addConstant": {
			Source: `(| base = 1 |) _AddSlots: (| extra = 2 |). 0`,
			Pass:   testutils.PassInt(0),
		},
		"addAndUse": {
			Source: `(| go = (_AddSlots: (| extra = 2 |). extra) |) go`,
			Pass:   testutils.PassInt(2),
		},
		"replace": {
			Source: `(| go = (_AddSlots: (| k = 5 |). k). k = 1 |) go`,
			Pass:   testutils.PassInt(5),
		},
		"rejectAssignable": {
			Source: `(| base = 1 |) _AddSlots: (| cell <- 2 |)`,
			Pass:   testutils.PassError("cannot add assignable"),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

func TestClone(t *testing.T) {
	cases := map[string]testutils.SourceTestCase{
		"cloneSharesShape": {
			Source: `(| x <- 7. get = (x) |) _Clone get`,
			Pass:   testutils.PassInt(7),
		},
		"cloneIsIndependent": {
			Source: `(| o = (| x <- 1. set: v = (x: v). get = (x) |). go = (o _Clone set: 99. o get) |) go`,
			Pass:   testutils.PassInt(1),
		},
		"identical": {
			Source: `3 _Identical: 3`,
			Pass:   testutils.PassString("true"),
		},
		"notIdentical": {
			Source: `(| a = 1 |) _Identical: (| a = 1 |)`,
			Pass:   testutils.PassString("false"),
		},
	}
	for name, c := range cases {
		t.Run(name, c.TestFunc(name))
	}
}

// Scenario: unbounded self-recursion hits the activation bound and reports
// a stack overflow with a full trace.
func TestStackOverflow(t *testing.T) {
	vm := testutils.TestingVM()
	script, err := parse.Parse(strings.NewReader(`(| loop = (loop) |) loop`), "overflow")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, rerr := vm.ExecuteScript(script)
	if rerr == nil {
		t.Fatal("runaway recursion did not fail")
	}
	if !strings.Contains(rerr.Message, "stack overflow") {
		t.Errorf("message %q does not name stack overflow", rerr.Message)
	}
	if len(rerr.Trace) != prose.MaxActivations {
		t.Errorf("trace depth = %d, want the bound %d", len(rerr.Trace), prose.MaxActivations)
	}
}

// Scenario: ten thousand short-lived strings allocated in a loop force
// collections; the receiver still resolves its parent slot and the
// long-lived object keeps its identity as seen through a tracked path.
func TestGCStress(t *testing.T) {
	vm := testutils.TestingVM()
	src := `(|
		keeper* = (| tag = 'long lived' |).
		churn = ( 10000 timesRepeat: [ 'abcdefgh' concat: 'ijklmnop' ]. tag )
	|) churn`
	script, err := parse.Parse(strings.NewReader(src), "stress")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v, rerr := vm.ExecuteScript(script)
	if rerr != nil {
		t.Fatalf("stress script failed: %v", rerr)
	}
	if got := vm.Format(v); got != "long lived" {
		t.Errorf("parent slot lookup after churn = %q", got)
	}
	if vm.Heap().Stats().Scavenges == 0 {
		t.Error("stress loop never triggered a collection")
	}
}

// Runtime errors render as file:line:column with a newest-first trace.
func TestErrorReportFormat(t *testing.T) {
	vm := testutils.TestingVM()
	script, err := parse.Parse(strings.NewReader("(| inner = (boom). outer = (inner) |) outer"), "report.prose")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, rerr := vm.ExecuteScript(script)
	if rerr == nil {
		t.Fatal("expected a runtime error")
	}
	head := rerr.Error()
	if !strings.HasPrefix(head, "report.prose:") || !strings.Contains(head, ": error: ") {
		t.Errorf("error head %q is not file:line:column: error: message", head)
	}
	var w strings.Builder
	rerr.Report(&w)
	lines := strings.Split(strings.TrimSpace(w.String()), "\n")
	if len(lines) < 3 {
		t.Fatalf("report too short:\n%s", w.String())
	}
	if !strings.Contains(lines[1], "at inner") {
		t.Errorf("newest frame is not first:\n%s", w.String())
	}
	if !strings.Contains(lines[2], "at outer") {
		t.Errorf("outer frame missing:\n%s", w.String())
	}
}

func TestExecuteSubScript(t *testing.T) {
	vm := testutils.TestingVM()
	sub := parse.MustParse("40 + 2", "<sub>")
	c := vm.ExecuteSubScript(sub)
	if !c.IsNormal() {
		t.Fatalf("sub-script failed: %v", c.Err())
	}
	if v := c.Value(); !v.IsInt() || v.Int() != 42 {
		t.Errorf("sub-script result = %s", vm.Format(v))
	}
}
