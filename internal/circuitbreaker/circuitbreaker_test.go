package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errBoom = errors.New("boom")
var errNoData = errors.New("no data")

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 3
	cfg.Timeout = time.Minute

	var transitions []gobreaker.State
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	cb := New[int](cfg)
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected errBoom, got %v", i, err)
		}
	}

	if !cb.IsOpen() {
		t.Fatalf("expected open breaker, got %v", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if !IsRejection(err) {
		t.Fatalf("expected rejection, got %v", err)
	}

	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("expected single transition to open, got %v", transitions)
	}
}

func TestCircuitBreaker_IsSuccessfulKeepsClosed(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 2
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, errNoData)
	}

	cb := New[string](cfg)
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (string, error) { return "", errNoData })
	}

	if cb.IsOpen() {
		t.Error("domain errors must not trip the breaker")
	}
	if cb.Name() != "test" {
		t.Errorf("expected name test, got %s", cb.Name())
	}
}
