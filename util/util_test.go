package util_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nasa-jpl/cameraunit/util"
)

func ExampleIntSliceToCSV() {
	fmt.Println(util.IntSliceToCSV([]int{1, 2, 4}))
	// Output: 1,2,4
}

func TestIntSliceContains(t *testing.T) {
	if !util.IntSliceContains([]int{1, 2, 4}, 4) {
		t.Error("expected 4 to be found")
	}
	if util.IntSliceContains([]int{1, 2, 4}, 3) {
		t.Error("expected 3 not to be found")
	}
}

func TestClampHigh(t *testing.T) {
	if out := util.Clamp(12, 0, 10); out != 10 {
		t.Errorf("expected 10 got %f", out)
	}
}

func TestClampLow(t *testing.T) {
	if out := util.Clamp(-3, 0, 10); out != 0 {
		t.Errorf("expected 0 got %f", out)
	}
}

func TestMergeErrors(t *testing.T) {
	if err := util.MergeErrors([]error{nil, nil}); err != nil {
		t.Errorf("expected nil got %v", err)
	}
	a := errors.New("a")
	if err := util.MergeErrors([]error{nil, a}); err != a {
		t.Errorf("expected a single error to pass through, got %v", err)
	}
	b := errors.New("b")
	err := util.MergeErrors([]error{a, nil, b})
	if !errors.Is(err, a) || !errors.Is(err, b) {
		t.Errorf("expected both errors to be wrapped, got %v", err)
	}
}
