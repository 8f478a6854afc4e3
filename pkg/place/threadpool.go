package place

import (
	"sync"

	"github.com/fabricpnr/corepnr/pkg/fabric"
)

// cellRNG is a tiny xorshift-multiply generator seeded from a per-batch
// value mixed with a cell's identity, giving every move proposal a
// deterministic random stream that depends only on (seed, cell, bel) and
// never on which goroutine happened to evaluate it (spec §5: "determinism
// regardless of thread configuration"). It is deliberately not
// fabric.RNG: fabric.RNG requires a shared, stateful *rand.Rand, which is
// exactly what concurrent workers must not touch.
type cellRNG struct{ state uint64 }

func newCellRNG(seed uint64) *cellRNG {
	r := &cellRNG{state: seed}
	for i := 0; i < 5; i++ {
		r.next()
	}
	return r
}

func (r *cellRNG) next() uint64 {
	retval := r.state * 0x2545F4914F6CDD1D
	r.state ^= r.state >> 12
	r.state ^= r.state << 25
	r.state ^= r.state >> 27
	return retval
}

// intn returns a value in [0, n) by rejection sampling against the next
// power of two at or above n.
func (r *cellRNG) intn(n int) int {
	if n <= 0 {
		return 0
	}
	m := n - 1
	m |= m >> 1
	m |= m >> 2
	m |= m >> 4
	m |= m >> 8
	m |= m >> 16
	m++
	for {
		x := int(r.next() & uint64(m-1))
		if x < n {
			return x
		}
	}
}

func (r *cellRNG) unit() float64 {
	const mask = 0x3fffffff
	return float64(r.intn(mask+1)) / float64(mask)
}

// evalCell is one worker's move proposal slot: a cell to evaluate and,
// once the worker runs, either the bel it proposes moving the cell to or
// fabric.NilBel if no move was accepted.
type evalCell struct {
	cell     fabric.CellId
	proposal fabric.BelId
}

// workerState is one thread-pool slot's private scratch space and its
// half of the mutex+condvar ready/processed handshake with the
// coordinator (spec §5, grounded on placer_prefine.cc's MoveEvaluatorData
// / move_evaluator_thread).
type workerState struct {
	mc    *moveChangeData
	moved map[fabric.CellId]fabric.BelId
	cells []evalCell
	seed  uint64

	moves, accepted int

	mu        sync.Mutex
	cond      *sync.Cond
	ready     bool
	processed bool
	die       bool
}

// workerPool runs a fixed set of worker goroutines, each holding its own
// workerState, dispatched in lockstep batches from run. Workers only ever
// compute proposals into their own evalCells; the coordinator applies
// accepted proposals serially afterward, so no goroutine ever touches the
// shared device binding table (spec §5, §7 "Placer worker model").
type workerPool struct {
	p       *Placer
	workers []*workerState
	wg      sync.WaitGroup
}

func newWorkerPool(p *Placer, n int) *workerPool {
	wp := &workerPool{p: p}
	for i := 0; i < n; i++ {
		ws := &workerState{
			mc:    newMoveChangeData(p.udata.Len()),
			moved: make(map[fabric.CellId]fabric.BelId),
		}
		ws.cond = sync.NewCond(&ws.mu)
		wp.workers = append(wp.workers, ws)
		wp.wg.Add(1)
		go wp.workerLoop(ws)
	}
	return wp
}

func (wp *workerPool) workerLoop(ws *workerState) {
	defer wp.wg.Done()
	for {
		ws.mu.Lock()
		for !ws.ready {
			ws.cond.Wait()
		}
		if ws.die {
			ws.mu.Unlock()
			return
		}
		ws.ready = false
		ws.moves, ws.accepted = 0, 0
		ws.mu.Unlock()

		wp.p.evaluateBatch(ws)

		ws.mu.Lock()
		ws.processed = true
		ws.mu.Unlock()
		ws.cond.Signal()
	}
}

// batchSize is the number of cells dispatched together before the
// coordinator applies the resulting proposals and moves to the next
// batch; it balances per-batch dispatch overhead against how stale the
// device state workers evaluate against can get (spec: run_threadpool's
// "N" constant).
const batchSize = 32

// run dispatches cells, in the order given, in batches of batchSize, split evenly
// across workers, waits for every worker to finish evaluating its slice,
// then applies accepted proposals one at a time through trySwapPosition
// (spec: run_threadpool).
func (wp *workerPool) run(cells []fabric.CellId) {
	p := wp.p
	for lb := 0; lb < len(cells); lb += batchSize {
		ub := min(lb+batchSize, len(cells))
		seed := uint64(p.rng.Int63())
		n := len(wp.workers)

		for j, ws := range wp.workers {
			jlb := lb + (j*(ub-lb))/n
			jub := lb + ((j+1)*(ub-lb))/n
			ws.mu.Lock()
			ws.seed = seed
			ws.cells = ws.cells[:0]
			for k := jlb; k < jub; k++ {
				ws.cells = append(ws.cells, evalCell{cell: cells[k], proposal: fabric.NilBel})
			}
			ws.processed = false
			ws.ready = true
			ws.mu.Unlock()
			ws.cond.Signal()
		}
		for _, ws := range wp.workers {
			ws.mu.Lock()
			for !ws.processed {
				ws.cond.Wait()
			}
			ws.mu.Unlock()
		}

		for _, ws := range wp.workers {
			p.nMove += ws.moves
			p.nAccept += ws.accepted
			for _, ec := range ws.cells {
				if ec.proposal != fabric.NilBel && ec.proposal != p.nl.CellBel(ec.cell) {
					p.trySwapPosition(ec.cell, ec.proposal)
				}
			}
		}
	}
}

func (wp *workerPool) kill() {
	for _, ws := range wp.workers {
		ws.mu.Lock()
		ws.die = true
		ws.ready = true
		ws.mu.Unlock()
		ws.cond.Signal()
	}
	wp.wg.Wait()
}
