package metrics

import (
	"errors"
	"testing"
)

func TestInstrumentsAreDescribedOnce(t *testing.T) {
	for name := range counterDescriptions {
		if _, dup := histogramDescriptions[name]; dup {
			t.Fatalf("%s registered as both counter and histogram", name)
		}
	}
	if n := len(counterDescriptions) + len(histogramDescriptions); n != 11 {
		t.Fatalf("expected 11 instruments, got %d", n)
	}
	if outcomeOf(nil) != OutcomeSucceeded || outcomeOf(errors.New("x")) != OutcomeFailed {
		t.Fatal("unexpected outcome mapping")
	}
}
