package commands

import (
	"errors"
	"testing"
)

func TestParseTaskRef_Numeric(t *testing.T) {
	num, err := ParseTaskRef([]string{"5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != 5 {
		t.Errorf("expected 5, got %d", num)
	}
}

func TestParseTaskRef_IgnoresTrailingArgs(t *testing.T) {
	num, err := ParseTaskRef([]string{"12", "new", "text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != 12 {
		t.Errorf("expected 12, got %d", num)
	}
}

func TestParseTaskRef_Empty(t *testing.T) {
	_, err := ParseTaskRef(nil)
	if !errors.Is(err, ErrTaskRefRequired) {
		t.Errorf("expected ErrTaskRefRequired, got %v", err)
	}
}

func TestParseTaskRef_Zero(t *testing.T) {
	_, err := ParseTaskRef([]string{"0"})
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err.Error() != "task number out of range: 0" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestParseTaskRef_Invalid(t *testing.T) {
	for _, ref := range []string{"a1", "-1", "1.5", "x", "١"} {
		_, err := ParseTaskRef([]string{ref})
		if err == nil {
			t.Errorf("%q: expected error", ref)
			continue
		}
		if want := "invalid task reference: " + ref; err.Error() != want {
			t.Errorf("%q: expected %q, got %q", ref, want, err.Error())
		}
	}
}

func TestParseTaskRef_Overflow(t *testing.T) {
	_, err := ParseTaskRef([]string{"99999999999999999999999"})
	if err == nil || err.Error() != "invalid task reference: 99999999999999999999999" {
		t.Errorf("unexpected error: %v", err)
	}
}
