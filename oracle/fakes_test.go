package oracle

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"flight-oracles/pool"
	"flight-oracles/queues"
)

type fakeRegistry struct {
	mu          sync.Mutex
	indexes     map[string]pool.IndexSet
	registerErr map[string]error
	indexesErr  map[string]error
	registered  []string
	onRegister  func(oracle string)
}

func (f *fakeRegistry) Register(ctx context.Context, oracle string, stake *big.Int) error {
	if f.onRegister != nil {
		f.onRegister(oracle)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.registerErr[oracle]; err != nil {
		return err
	}
	f.registered = append(f.registered, oracle)
	return nil
}

func (f *fakeRegistry) Indexes(ctx context.Context, oracle string) (pool.IndexSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.indexesErr[oracle]; err != nil {
		return pool.IndexSet{}, err
	}
	return f.indexes[oracle], nil
}

type submission struct {
	oracle string
	req    *queues.StatusRequest
	code   StatusCode
}

// fakeResponder records submissions. Per-oracle behaviour is chosen by the
// errs, block and panics maps.
type fakeResponder struct {
	mu      sync.Mutex
	calls   []submission
	errs    map[string]error
	block   map[string]chan struct{}
	panics  map[string]bool
	started chan string

	active    atomic.Int64
	maxActive atomic.Int64
}

func (f *fakeResponder) SubmitResponse(ctx context.Context, oracle string, req *queues.StatusRequest, code StatusCode) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, submission{oracle: oracle, req: req, code: code})
	errv := f.errs[oracle]
	ch := f.block[oracle]
	p := f.panics[oracle]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- oracle
	}
	if p {
		panic("responder exploded")
	}
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errv
}

func (f *fakeResponder) submissions() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]submission, len(f.calls))
	copy(out, f.calls)
	return out
}

type recordingPublisher struct {
	mu       sync.Mutex
	outcomes []*queues.ResponseOutcome
	err      error
}

func (p *recordingPublisher) PublishResult(ctx context.Context, res *queues.ResponseOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, res)
	return p.err
}

func (p *recordingPublisher) all() []*queues.ResponseOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*queues.ResponseOutcome, len(p.outcomes))
	copy(out, p.outcomes)
	return out
}

func buildPool(ids ...pool.Identity) *pool.Pool {
	b := pool.NewBuilder()
	for _, id := range ids {
		if err := b.Add(id); err != nil {
			panic(err)
		}
	}
	return b.Build()
}

// fivePool is a pool of five oracles where only oracle-2 holds index 4.
func fivePool() *pool.Pool {
	return buildPool(
		pool.Identity{Address: "oracle-0", Indexes: pool.IndexSet{0, 1, 2}},
		pool.Identity{Address: "oracle-1", Indexes: pool.IndexSet{2, 3, 5}},
		pool.Identity{Address: "oracle-2", Indexes: pool.IndexSet{1, 4, 7}},
		pool.Identity{Address: "oracle-3", Indexes: pool.IndexSet{0, 6, 8}},
		pool.Identity{Address: "oracle-4", Indexes: pool.IndexSet{3, 5, 8}},
	)
}

func testRequest(index uint8) *queues.StatusRequest {
	return &queues.StatusRequest{ID: "req-1", Index: index, Airline: "airline-1", Flight: "ND1309", Timestamp: 1700000000}
}
