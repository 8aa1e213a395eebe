package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	if got := MetadataFor(CodeCapacity).HTTPStatus; got != http.StatusConflict {
		t.Fatalf("capacity status = %d", got)
	}
	if got := MetadataFor(CodeStateConflict).HTTPStatus; got != http.StatusUnprocessableEntity {
		t.Fatalf("state conflict status = %d", got)
	}
	if meta := MetadataFor(Code("BOGUS")); meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown code should map to internal, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("socket closed")
	err := Wrap(CodeDependency, cause, "ledger write")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to satisfy errors.Is")
	}
	typed := As(fmt.Errorf("outer: %w", err))
	if typed == nil || typed.Code() != CodeDependency {
		t.Fatalf("expected typed dependency error, got %v", typed)
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeCapacity, stdErrors.New("row conflict"), "reserve seats")
	dump := Dump(err)
	if dump.Code != CodeCapacity {
		t.Fatalf("dump code = %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain depth >= 2, got %d", len(dump.Chain))
	}
}
