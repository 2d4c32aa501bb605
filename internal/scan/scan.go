package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/August26/proxyscan/internal/iprange"
	"github.com/August26/proxyscan/internal/model"
	"github.com/August26/proxyscan/internal/parser"
)

// Prober classifies a single address. Implementations must be safe for
// concurrent use when Options.Concurrency > 1.
type Prober interface {
	Probe(ctx context.Context, addr iprange.Address) (model.ProbeResult, error)
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, addr iprange.Address) (model.ProbeResult, error)

func (f ProberFunc) Probe(ctx context.Context, addr iprange.Address) (model.ProbeResult, error) {
	return f(ctx, addr)
}

// Options tunes a Run. The zero value probes sequentially and discards
// results.
type Options struct {
	// Concurrency is the number of probes allowed in flight. Values below 2
	// run strictly sequentially, one probe completing before the next starts.
	Concurrency int

	// OnResult receives every probe outcome, including failed ones. It is
	// called from worker goroutines when Concurrency > 1.
	OnResult func(model.ProbeResult)

	Logger *slog.Logger
}

// Summary counts what a run did.
type Summary struct {
	Tokens   int
	Probed   int
	Failed   int
	Duration time.Duration
}

// Run resolves every token, then probes each address of each token: tokens in
// input order, addresses ascending. All tokens are resolved before the first
// probe so an invalid batch probes nothing.
//
// A failing probe never stops the run. When ctx is cancelled no further
// probes are started, in-flight ones complete, and ctx.Err() is returned
// together with the partial summary.
func Run(ctx context.Context, tokens []parser.Token, p Prober, opts Options) (Summary, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ranges, err := Resolve(tokens)
	if err != nil {
		return Summary{}, err
	}

	s := &runner{
		prober:   p,
		onResult: opts.OnResult,
		log:      log,
	}

	start := time.Now()
	if opts.Concurrency > 1 {
		err = s.runConcurrent(ctx, tokens, ranges, opts.Concurrency)
	} else {
		err = s.runSequential(ctx, tokens, ranges)
	}

	sum := Summary{
		Tokens:   len(tokens),
		Probed:   s.probed,
		Failed:   s.failed,
		Duration: time.Since(start),
	}
	return sum, err
}

// Resolve turns every token into its address range, failing on the first
// token that does not resolve.
func Resolve(tokens []parser.Token) ([]iprange.Range, error) {
	ranges := make([]iprange.Range, 0, len(tokens))
	for _, tok := range tokens {
		r, err := tok.Resolve()
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", tok.Raw, err)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

type runner struct {
	prober   Prober
	onResult func(model.ProbeResult)
	log      *slog.Logger

	mu     sync.Mutex
	probed int
	failed int
}

func (s *runner) runSequential(ctx context.Context, tokens []parser.Token, ranges []iprange.Range) error {
	for i, r := range ranges {
		s.log.Debug("scanning token", "token", tokens[i].Raw, "kind", tokens[i].Kind.String(), "addresses", r.Len())
		for addr := range r.All() {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.probeOne(ctx, addr)
		}
	}
	return nil
}

// runConcurrent splits each token's range into at most limit disjoint spans
// and gives every span to its own worker. Tokens are still handled in input
// order; the next token starts once all spans of the current one finish.
func (s *runner) runConcurrent(ctx context.Context, tokens []parser.Token, ranges []iprange.Range, limit int) error {
	for i, r := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}
		spans := r.Split(limit)
		s.log.Debug("scanning token", "token", tokens[i].Raw, "kind", tokens[i].Kind.String(), "addresses", r.Len(), "workers", len(spans))

		g := new(errgroup.Group)
		for _, span := range spans {
			g.Go(func() error {
				for addr := range span.All() {
					if ctx.Err() != nil {
						return nil
					}
					s.probeOne(ctx, addr)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	return ctx.Err()
}

// probeOne runs a single probe and swallows its failure.
func (s *runner) probeOne(ctx context.Context, addr iprange.Address) {
	res, err := s.safeProbe(ctx, addr)

	s.mu.Lock()
	s.probed++
	if err != nil {
		s.failed++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Debug("probe failed", "ip", addr.String(), "err", err)
		if res.IP == "" {
			res = model.ProbeResult{Address: addr, IP: addr.String(), Status: model.StatusUnknown}
		}
		if res.Error == "" {
			res.Error = err.Error()
		}
	}

	if s.onResult != nil {
		s.onResult(res)
	}
}

// safeProbe turns a panicking prober into an ordinary failure for that
// address.
func (s *runner) safeProbe(ctx context.Context, addr iprange.Address) (res model.ProbeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return s.prober.Probe(ctx, addr)
}
