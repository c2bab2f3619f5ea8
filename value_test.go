package prose

import (
	"math"
	"testing"
)

func TestIntRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 42, -42, 1 << 40, -(1 << 40), MaxInt, MinInt}
	for _, i := range cases {
		v := TagInt(i)
		if !v.IsInt() || v.IsRef() || v.IsFloat() {
			t.Errorf("TagInt(%d) has wrong tag", i)
		}
		if got := v.Int(); got != i {
			t.Errorf("TagInt(%d).Int() = %d", i, got)
		}
	}
}

func TestFloatRoundTrip(t *testing.T) {
	exact := []float64{0, 1, -1, 0.5, -0.25, 1024, math.Inf(1), math.Inf(-1)}
	for _, f := range exact {
		v := TagFloat(f)
		if !v.IsFloat() {
			t.Errorf("TagFloat(%g) has wrong tag", f)
		}
		if got := v.Float(); got != f {
			t.Errorf("TagFloat(%g).Float() = %g", f, got)
		}
	}
}

// Tagging clears the two low bits of the IEEE representation, so the stored
// float is the bit pattern rounded toward zero in the mantissa.
func TestFloatRounding(t *testing.T) {
	f := math.Float64frombits(0x3ff0000000000003)
	v := TagFloat(f)
	want := math.Float64frombits(0x3ff0000000000000)
	if got := v.Float(); got != want {
		t.Errorf("TagFloat rounding: got %b, want %b", math.Float64bits(got), math.Float64bits(want))
	}
	if loss := math.Abs(f - v.Float()); loss > 1e-15 {
		t.Errorf("rounding lost more than two mantissa bits: %g", loss)
	}
}

func TestRefTagging(t *testing.T) {
	addrs := []uint64{0, 8, 64, 1 << 20}
	for _, a := range addrs {
		v := taggedRef(a)
		if !v.IsRef() || v.IsInt() || v.IsFloat() {
			t.Errorf("taggedRef(%#x) has wrong tag", a)
		}
		if got := v.addr(); got != a {
			t.Errorf("taggedRef(%#x).addr() = %#x", a, got)
		}
	}
}

func TestMarkerNeverOverlaps(t *testing.T) {
	if marker.IsInt() || marker.IsRef() || marker.IsFloat() {
		t.Error("marker matches a real tag")
	}
}
