package env

import "testing"

func TestFirst(t *testing.T) {
	t.Setenv("SF_TEST_A", "")
	t.Setenv("SF_TEST_B", "9090")

	if got := First("8080", "SF_TEST_A", "SF_TEST_B"); got != "9090" {
		t.Fatalf("expected 9090, got %q", got)
	}
	if got := First("8080", "SF_TEST_A"); got != "8080" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := Get("SF_TEST_MISSING", "x"); got != "x" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
