package errors

import (
	"testing"
)

func TestUnsupportedMethodError_As(t *testing.T) {
	err := NewUnsupportedMethodError("wavelets")

	var ume *UnsupportedMethodError
	if !As(err, &ume) {
		t.Fatal("Expected As to find UnsupportedMethodError through the stack wrapper")
	}
	if ume.Method != "wavelets" {
		t.Errorf("Expected method 'wavelets', got %q", ume.Method)
	}
}

func TestDimensionError_Message(t *testing.T) {
	err := NewDimensionError("fitSite", 10, 8, 0)

	var de *DimensionError
	if !As(err, &de) {
		t.Fatal("Expected a DimensionError")
	}
	if de.Expected != 10 || de.Got != 8 {
		t.Errorf("Unexpected fields: %+v", de)
	}
	want := "downscale: fitSite: dimension mismatch on axis 0 (rows). Expected 10, got 8"
	if de.Error() != want {
		t.Errorf("Expected %q, got %q", want, de.Error())
	}
}

func TestAllMissingError_Fields(t *testing.T) {
	err := NewAllMissingError(4, 365)

	var ame *AllMissingError
	if !As(err, &ame) {
		t.Fatal("Expected an AllMissingError")
	}
	if ame.Site != 4 || ame.Observations != 365 {
		t.Errorf("Unexpected fields: %+v", ame)
	}
}

func TestWrap_PreservesSentinel(t *testing.T) {
	err := Wrap(ErrSingularMatrix, "glm.Train (gaussian)")
	if !Is(err, ErrSingularMatrix) {
		t.Error("Expected the sentinel to survive wrapping")
	}
}

func TestWarn_Handler(t *testing.T) {
	var got error
	SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(func(error) {})

	w := NewConvergenceWarning("GLM/IRLS", 25, "binomial")
	Warn(w)

	if got == nil {
		t.Fatal("Expected the handler to receive the warning")
	}
	var cw *ConvergenceWarning
	if !As(got, &cw) || cw.Iterations != 25 {
		t.Errorf("Unexpected warning: %v", got)
	}
}

func TestSafeExecute_RecoversPanic(t *testing.T) {
	err := SafeExecute("test op", func() error {
		panic("numerical fault")
	})
	if err == nil {
		t.Fatal("Expected the panic to surface as an error")
	}
	var pe *PanicError
	if !As(err, &pe) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if pe.Operation != "test op" {
		t.Errorf("Expected operation 'test op', got %q", pe.Operation)
	}
}
