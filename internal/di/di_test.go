package di_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fd1az/synth-indexer/internal/di"
)

type service struct{ name string }

var serviceToken = di.NewToken[*service]("test:service")

func TestRegisterToken_LazyAndSingleton(t *testing.T) {
	c := di.NewContainer()

	var calls atomic.Int32
	di.RegisterToken(c, serviceToken, func(sr di.ServiceRegistry) *service {
		calls.Add(1)
		return &service{name: sr.Get("name").(string)}
	})
	c.Register("name", "history")

	if calls.Load() != 0 {
		t.Fatal("factory must not run before first Get")
	}

	var wg sync.WaitGroup
	results := make([]*service, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = di.GetToken(c, serviceToken)
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one factory call, got %d", calls.Load())
	}
	for _, r := range results {
		if r != results[0] {
			t.Fatal("expected the same instance")
		}
	}
	if results[0].name != "history" {
		t.Errorf("expected name history, got %s", results[0].name)
	}
}

func TestGet_UnknownPanics(t *testing.T) {
	c := di.NewContainer()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	c.Get("missing")
}
