package prose_test

import (
	"testing"

	"github.com/proselang/prose/testutils"
)

func TestFileCases(t *testing.T) {
	testutils.RunFileCases(t, "testdata/eval.yaml")
}
