package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/August26/proxyscan/internal/iprange"
	"github.com/August26/proxyscan/internal/model"
	"github.com/August26/proxyscan/internal/parser"
)

func mustBatch(t *testing.T, text string) []parser.Token {
	t.Helper()
	toks, err := parser.ParseBatch(text)
	if err != nil {
		t.Fatalf("ParseBatch(%q): %v", text, err)
	}
	return toks
}

func activeProber(ctx context.Context, addr iprange.Address) (model.ProbeResult, error) {
	return model.ProbeResult{Address: addr, IP: addr.String(), Status: model.StatusActive}, nil
}

func TestRun_SequentialOrder(t *testing.T) {
	toks := mustBatch(t, "10.0.0.2-10.0.0.4 192.168.0.0/31 10.0.0.3/32")

	var got []string
	p := ProberFunc(func(ctx context.Context, addr iprange.Address) (model.ProbeResult, error) {
		got = append(got, addr.String())
		return activeProber(ctx, addr)
	})

	sum, err := Run(context.Background(), toks, p, Options{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Overlapping tokens are not deduplicated.
	want := []string{"10.0.0.2", "10.0.0.3", "10.0.0.4", "192.168.0.0", "192.168.0.1", "10.0.0.3"}
	if len(got) != len(want) {
		t.Fatalf("probed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("probe %d = %s, want %s (all: %v)", i, got[i], want[i], got)
		}
	}
	if sum.Tokens != 3 || sum.Probed != 6 || sum.Failed != 0 {
		t.Fatalf("bad summary: %+v", sum)
	}
}

func TestRun_FailOpen(t *testing.T) {
	toks := mustBatch(t, "10.0.0.0/30 10.0.1.0-10.0.1.1")
	failAt := iprange.MustParseAddress("10.0.0.1")
	panicAt := iprange.MustParseAddress("10.0.0.2")

	var probed []iprange.Address
	var results []model.ProbeResult
	p := ProberFunc(func(ctx context.Context, addr iprange.Address) (model.ProbeResult, error) {
		probed = append(probed, addr)
		switch addr {
		case failAt:
			return model.ProbeResult{}, errors.New("connection reset")
		case panicAt:
			panic("bad response")
		}
		return activeProber(ctx, addr)
	})

	sum, err := Run(context.Background(), toks, p, Options{
		OnResult: func(r model.ProbeResult) { results = append(results, r) },
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(probed) != 6 {
		t.Fatalf("probed %d addresses, want 6: %v", len(probed), probed)
	}
	if sum.Failed != 2 || sum.Probed != 6 {
		t.Fatalf("bad summary: %+v", sum)
	}
	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}
	if !results[1].Failed() || results[1].IP != "10.0.0.1" || results[1].Status != model.StatusUnknown {
		t.Fatalf("failed probe result not recorded: %#v", results[1])
	}
	if !results[2].Failed() {
		t.Fatalf("panicking probe should be recorded as failed: %#v", results[2])
	}
	if !results[5].Active() {
		t.Fatalf("probes after the failure should still run: %#v", results[5])
	}
}

func TestRun_InvalidTokenProbesNothing(t *testing.T) {
	toks := mustBatch(t, "10.0.0.0/30")
	toks = append(toks, parser.Token{Raw: "garbage"})

	called := false
	p := ProberFunc(func(ctx context.Context, addr iprange.Address) (model.ProbeResult, error) {
		called = true
		return activeProber(ctx, addr)
	})

	if _, err := Run(context.Background(), toks, p, Options{}); !errors.Is(err, parser.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if called {
		t.Fatalf("no probe should run when a token does not resolve")
	}
}

func TestRun_CancelStopsNewProbes(t *testing.T) {
	toks := mustBatch(t, "10.0.0.0/24")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := 0
	p := ProberFunc(func(pctx context.Context, addr iprange.Address) (model.ProbeResult, error) {
		n++
		if n == 5 {
			cancel()
		}
		return activeProber(pctx, addr)
	})

	sum, err := Run(ctx, toks, p, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n != 5 || sum.Probed != 5 {
		t.Fatalf("probed %d (summary %d) after cancel, want 5", n, sum.Probed)
	}
}

func TestRun_ConcurrentAtMostOnce(t *testing.T) {
	toks := mustBatch(t, "10.0.0.0/24 10.0.1.0-10.0.1.9")

	var mu sync.Mutex
	seen := map[iprange.Address]int{}
	var inFlight, maxInFlight int32
	p := ProberFunc(func(ctx context.Context, addr iprange.Address) (model.ProbeResult, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if cur <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, cur) {
				break
			}
		}
		defer atomic.AddInt32(&inFlight, -1)

		mu.Lock()
		seen[addr]++
		mu.Unlock()
		if addr%7 == 0 {
			return model.ProbeResult{}, errors.New("flaky")
		}
		return activeProber(ctx, addr)
	})

	var resMu sync.Mutex
	var ips []string
	sum, err := Run(context.Background(), toks, p, Options{
		Concurrency: 8,
		OnResult: func(r model.ProbeResult) {
			resMu.Lock()
			ips = append(ips, r.IP)
			resMu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(seen) != 266 || sum.Probed != 266 {
		t.Fatalf("probed %d distinct / %d total, want 266", len(seen), sum.Probed)
	}
	for addr, c := range seen {
		if c != 1 {
			t.Fatalf("%s probed %d times", addr, c)
		}
	}
	if got := atomic.LoadInt32(&maxInFlight); got > 8 {
		t.Fatalf("max in flight %d exceeds limit 8", got)
	}
	if len(ips) != 266 {
		t.Fatalf("got %d results, want 266", len(ips))
	}
	if sum.Failed == 0 {
		t.Fatalf("expected some failures to be counted")
	}
}

func TestRun_ConcurrentCancel(t *testing.T) {
	toks := mustBatch(t, "10.0.0.0/16")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n int32
	p := ProberFunc(func(pctx context.Context, addr iprange.Address) (model.ProbeResult, error) {
		if atomic.AddInt32(&n, 1) == 20 {
			cancel()
		}
		return activeProber(pctx, addr)
	})

	sum, err := Run(ctx, toks, p, Options{Concurrency: 4})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sum.Probed >= 65536 {
		t.Fatalf("cancel did not stop the scan: %d probes", sum.Probed)
	}
}

func TestRun_ConcurrentKeepsTokenOrder(t *testing.T) {
	toks := mustBatch(t, "10.0.0.0/26 10.9.0.0-10.9.0.20")
	second, _ := toks[1].Resolve()

	var mu sync.Mutex
	var order []iprange.Address
	p := ProberFunc(func(ctx context.Context, addr iprange.Address) (model.ProbeResult, error) {
		mu.Lock()
		order = append(order, addr)
		mu.Unlock()
		return activeProber(ctx, addr)
	})

	if _, err := Run(context.Background(), toks, p, Options{Concurrency: 4}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(order) != 64+21 {
		t.Fatalf("probed %d addresses, want 85", len(order))
	}
	for i, a := range order {
		if second.Contains(a) != (i >= 64) {
			t.Fatalf("address %s at position %d crosses token boundary", a, i)
		}
	}
}

func TestResolve(t *testing.T) {
	ranges, err := Resolve(mustBatch(t, "10.0.0.0/30 10.0.0.2-10.0.0.9"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(ranges) != 2 || ranges[0].Len() != 4 || ranges[1].Len() != 8 {
		t.Fatalf("bad ranges: %v", ranges)
	}
	if got := iprange.UniqueLen(ranges); got != 10 {
		t.Fatalf("UniqueLen = %d, want 10", got)
	}

	if _, err := Resolve([]parser.Token{{Raw: "garbage"}}); !errors.Is(err, parser.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
