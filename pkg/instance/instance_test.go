package instance

import "testing"

func TestGetIDPrefersDyno(t *testing.T) {
	t.Setenv("DYNO", "web.2")
	t.Setenv("WORKER_ID", "worker-7")
	if got := GetID(); got != "web.2" {
		t.Fatalf("expected dyno id got %q", got)
	}
}

func TestGetIDFallsBackToWorkerID(t *testing.T) {
	t.Setenv("DYNO", "")
	t.Setenv("WORKER_ID", "worker-7")
	if got := GetID(); got != "worker-7" {
		t.Fatalf("expected worker id got %q", got)
	}
}

func TestGetIDNeverEmpty(t *testing.T) {
	t.Setenv("DYNO", "")
	t.Setenv("WORKER_ID", "")
	if GetID() == "" {
		t.Fatal("expected a non-empty instance id")
	}
}
