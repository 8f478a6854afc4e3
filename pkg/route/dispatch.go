package route

import (
	"sync"

	"github.com/fabricpnr/corepnr/pkg/fabric"
)

// multiThreadThreshold is the minimum queue size before bothering to
// spread routing across workers; below it the dispatch and join
// overhead outweighs any parallelism gained (spec §5, tuned by the
// teacher's equivalent heuristic).
const multiThreadThreshold = 200

// numWorkers is the fixed worker-goroutine count: four spatial
// quadrants, each routed by its own goroutine touching only its own
// wires, with no locking needed between them (spec §5/§9).
const numWorkers = 4

// DoRoute routes every net in queue, splitting across numWorkers
// goroutines by spatial quadrant when the queue is large enough, and
// always finishing single-threaded with the straddling/unsplittable
// nets and any worker failures (spec: do_route).
func (r *Router) DoRoute(queue []fabric.NetId) error {
	if len(queue) < multiThreadThreshold {
		st := NewThreadContext(r.rng)
		for _, n := range queue {
			ok, err := r.RouteNet(st, n, false)
			if err != nil {
				return err
			}
			if !ok {
				r.markFailed(n)
			}
		}
		return nil
	}

	bins := make([][]fabric.NetId, numWorkers+1)
	for _, n := range queue {
		nd := r.nets[n]
		bin := quadrant(nd.BB, r.midX, r.midY, r.Config.BBMarginX, r.Config.BBMarginY)
		bins[bin] = append(bins[bin], n)
	}

	tcs := make([]*ThreadContext, numWorkers+1)
	for i := range tcs {
		tcs[i] = NewThreadContext(r.rng.Spawn(uint64(i)))
		tcs[i].RouteNets = bins[i]
	}

	var wg sync.WaitGroup
	errs := make([]error, numWorkers)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.routerThread(tcs[i])
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	// Straddling and oversized nets run single-threaded.
	straddle := tcs[numWorkers]
	for _, n := range straddle.RouteNets {
		ok, err := r.RouteNet(straddle, n, false)
		if err != nil {
			return err
		}
		if !ok {
			r.markFailed(n)
		}
	}
	// Anything a worker couldn't finish within its bounding box gets one
	// more single-threaded attempt, unconstrained.
	for i := 0; i < numWorkers; i++ {
		for _, n := range tcs[i].FailedNets {
			ok, err := r.RouteNet(straddle, n, false)
			if err != nil {
				return err
			}
			if !ok {
				r.markFailed(n)
			}
		}
	}
	return nil
}

// routerThread runs every net assigned to one worker's ThreadContext,
// collecting failures for the single-threaded retry pass.
func (r *Router) routerThread(t *ThreadContext) error {
	for _, n := range t.RouteNets {
		ok, err := r.RouteNet(t, n, true)
		if err != nil {
			return err
		}
		if !ok {
			t.FailedNets = append(t.FailedNets, n)
		}
	}
	return nil
}
