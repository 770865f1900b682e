package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestOfUnwrapsCodes(t *testing.T) {
	if got := Of(nil); got != OK {
		t.Fatalf("Of(nil) = %q", got)
	}
	if got := Of(QueueFull); got != QueueFull {
		t.Fatalf("Of(QueueFull) = %q", got)
	}
	wrapped := fmt.Errorf("flush: %w", Wrap(TransferFailed, "burst", errors.New("spi nak")))
	if got := Of(wrapped); got != TransferFailed {
		t.Fatalf("Of(wrapped) = %q", got)
	}
	if got := Of(errors.New("plain")); got != Error {
		t.Fatalf("Of(plain) = %q", got)
	}
}

func TestEIsMatchesCode(t *testing.T) {
	cause := errors.New("spi nak")
	err := Wrap(TransferFailed, "burst", cause)
	if !errors.Is(err, TransferFailed) {
		t.Fatal("errors.Is should match the code")
	}
	if errors.Is(err, Timeout) {
		t.Fatal("errors.Is matched the wrong code")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	if got, want := err.Error(), "burst: transfer_failed (spi nak)"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
