package models

import "testing"

func TestCanTransitionForward(t *testing.T) {
	order := []DocumentStatus{StatusUploaded, StatusDownloading, StatusParsing, StatusEmbedding, StatusProcessed}
	for i := 0; i < len(order)-1; i++ {
		if !CanTransition(order[i], order[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", order[i], order[i+1])
		}
	}
	// Skipping ahead is still monotonic.
	if !CanTransition(StatusUploaded, StatusProcessed) {
		t.Fatal("expected uploaded -> processed to be allowed")
	}
}

func TestCanTransitionNeverRegresses(t *testing.T) {
	if CanTransition(StatusParsing, StatusDownloading) {
		t.Fatal("parsing -> downloading must not be allowed")
	}
	if CanTransition(StatusEmbedding, StatusUploaded) {
		t.Fatal("embedding -> uploaded must not be allowed")
	}
}

func TestCanTransitionRejectsStaleRunWrites(t *testing.T) {
	// A terminated older ingestion run may still try to write the status it
	// was at when a newer run has already moved further along.
	if CanTransition(StatusEmbedding, StatusParsing) {
		t.Fatal("embedding -> parsing must not be allowed")
	}
	if CanTransition(StatusParsing, StatusParsing) {
		t.Fatal("repeating the current status must not be allowed")
	}
}

func TestFailedIsTerminal(t *testing.T) {
	for _, from := range []DocumentStatus{StatusUploaded, StatusDownloading, StatusParsing, StatusEmbedding} {
		if !CanTransition(from, StatusFailed) {
			t.Fatalf("expected %s -> failed to be allowed", from)
		}
	}
	if CanTransition(StatusFailed, StatusEmbedding) {
		t.Fatal("failed must be terminal")
	}
	if CanTransition(StatusProcessed, StatusFailed) {
		t.Fatal("processed must be terminal")
	}
}
