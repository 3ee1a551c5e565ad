// internal/fserr/errors_test.go
package fserr

import (
	"errors"
	"fmt"
	"testing"
)

func TestProtocolErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("filesys: write: %w", &ProtocolError{Op: "write", Device: 2, Sector: 1, Block: 5, Reason: "nack"})

	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError")
	}
	if pe.Device != 2 || pe.Sector != 1 || pe.Block != 5 {
		t.Fatalf("context lost: %+v", pe)
	}
	if pe.Code() != Code(ErrProtocol) {
		t.Fatalf("code mismatch: %d", pe.Code())
	}
}

func TestCode(t *testing.T) {
	if Code(nil) != 0 {
		t.Fatalf("nil must map to 0")
	}
	if Code(errors.New("other")) != 1 {
		t.Fatalf("unknown must map to 1")
	}
	if Code(fmt.Errorf("x: %w", ErrOutOfSpace)) != 13 {
		t.Fatalf("wrapped out of space must keep its code")
	}
}

func TestKind(t *testing.T) {
	err, ok := Kind("already_open")
	if !ok || err != ErrAlreadyOpen {
		t.Fatalf("already_open: got=%v ok=%v", err, ok)
	}
	if _, ok := Kind("bogus"); ok {
		t.Fatalf("unknown kind must not parse")
	}
}
