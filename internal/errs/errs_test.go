package errs

import (
	"errors"
	"log/slog"
	"testing"
)

func TestWrapKeepsChain(t *testing.T) {
	root := errors.New("disk full")
	err := Wrapf(Wrap(root, "save media"), "submit %s", "text")

	if !errors.Is(err, root) {
		t.Fatalf("errors.Is(root) = false")
	}
	if got := err.Error(); got != "submit text: save media: disk full" {
		t.Fatalf("Error() = %q", got)
	}
	if chain := ErrorChainStrings(err); len(chain) != 3 {
		t.Fatalf("chain len = %d, want 3 (%v)", len(chain), chain)
	}
	if Wrap(nil, "noop") != nil || Wrapf(nil, "noop %d", 1) != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
}

func TestLoggableIncludesKindAndStack(t *testing.T) {
	RegisterKind(func(error) string { return "media_store" })
	t.Cleanup(func() { RegisterKind(nil) })

	value := Loggable(WithStack(errors.New("boom"))).LogValue()
	if value.Kind() != slog.KindGroup {
		t.Fatalf("kind = %v, want group", value.Kind())
	}

	found := map[string]bool{}
	for _, attr := range value.Group() {
		found[attr.Key] = true
	}
	for _, key := range []string{"message", "chain", "kind", "stack"} {
		if !found[key] {
			t.Fatalf("attr %q missing from %v", key, value.Group())
		}
	}
}

func TestWithStackDoesNotDoubleCapture(t *testing.T) {
	first := WithStack(errors.New("boom"))
	if WithStack(Wrap(first, "outer")) == first {
		t.Fatalf("WithStack returned inner error instead of wrapped one")
	}
	var se *StackError
	if !errors.As(WithStack(Wrap(first, "outer")), &se) {
		t.Fatalf("stack error lost")
	}
}
