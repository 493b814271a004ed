package instance

import "testing"

func TestIDPrefersDyno(t *testing.T) {
	t.Setenv("DYNO", "web.2")
	t.Setenv("WORKER_ID", "worker-7")
	if got := ID(); got != "web.2" {
		t.Fatalf("expected dyno name, got %q", got)
	}
}

func TestIDFallsBackToWorker(t *testing.T) {
	t.Setenv("DYNO", "")
	t.Setenv("WORKER_ID", "worker-7")
	if got := ID(); got != "worker-7" {
		t.Fatalf("expected worker id, got %q", got)
	}
}
