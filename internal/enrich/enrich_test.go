package enrich

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestOrElse(t *testing.T) {
	logger := zap.NewNop()

	ok := Attempt(func() ([]string, error) { return []string{"a"}, nil })
	if got := OrElse(logger, "ok", ok, nil); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected value to pass through, got %v", got)
	}

	failed := Attempt(func() ([]string, error) { return nil, errors.New("boom") })
	if !failed.IsError() {
		t.Fatal("expected error result")
	}
	got := OrElse(logger, "failed", failed, []string{})
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty fallback, got %v", got)
	}

	if got := OrElse(nil, "nil logger", failed, []string{"x"}); got[0] != "x" {
		t.Errorf("nil logger should still fall back, got %v", got)
	}
}
