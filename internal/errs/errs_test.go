package errs

import (
	"errors"
	"testing"
)

func TestWrapPreservesChain(t *testing.T) {
	base := errors.New("provider unreachable")
	wrapped := Wrapf(Wrap(base, "call deepl"), "translate article %d", 7)

	if !errors.Is(wrapped, base) {
		t.Fatalf("errors.Is(wrapped, base) = false")
	}
	if got, want := wrapped.Error(), "translate article 7: call deepl: provider unreachable"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	chain := ErrorChainStrings(wrapped)
	if len(chain) != 3 {
		t.Fatalf("ErrorChainStrings() len = %d, want 3", len(chain))
	}
	if RootCause(wrapped) != base {
		t.Fatalf("RootCause() = %v, want %v", RootCause(wrapped), base)
	}
}

func TestWithStackCapturesOnce(t *testing.T) {
	base := errors.New("boom")
	first := WithStack(base)
	second := WithStack(Wrap(first, "outer"))

	var se *StackError
	if !errors.As(second, &se) {
		t.Fatalf("errors.As(StackError) = false")
	}
	if len(se.Stack()) == 0 {
		t.Fatalf("Stack() is empty")
	}
	if Wrap(nil, "x") != nil || WithStack(nil) != nil || RootCause(nil) != nil {
		t.Fatalf("nil inputs must stay nil")
	}
}
