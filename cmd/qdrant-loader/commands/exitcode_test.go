package commands

import (
	"errors"
	"testing"
)

func TestExitCodeDefaultsToOne(t *testing.T) {
	if got := ExitCode(errors.New("boom")); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestExitCodeNilIsZero(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestExitCodeWrapped(t *testing.T) {
	err := withExitCode(5, errors.New("zero succeeded"))
	if got := ExitCode(err); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestWithExitCodeNilPassesThrough(t *testing.T) {
	if withExitCode(2, nil) != nil {
		t.Fatal("expected nil error to stay nil")
	}
}
