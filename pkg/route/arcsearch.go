package route

import (
	"container/heap"

	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/netstate"
)

// WireScore is one wire's A* score: accumulated cost so far plus the
// inflated togo estimate, and the accumulated delay (tracked separately
// so a future timing-driven router can read it without recomputing).
type WireScore struct {
	Cost     float64
	TogoCost float64
	Delay    fabric.Delay
}

// Total is the priority-queue key: cost-so-far plus inflated remainder.
func (s WireScore) Total() float64 { return s.Cost + s.TogoCost }

type visitInfo struct {
	Score WireScore
	Pip   fabric.PipId
}

// queuedWire is one entry in the forward-search frontier.
type queuedWire struct {
	wire    fabric.WireId
	pip     fabric.PipId
	score   WireScore
	randtag int64
}

// wireHeap is a min-heap on total score, tie-broken by randtag so
// otherwise-equal wires are explored in a shuffled but deterministic
// (seeded) order rather than strict insertion order.
type wireHeap []queuedWire

func (h wireHeap) Len() int { return len(h) }
func (h wireHeap) Less(i, j int) bool {
	si, sj := h[i].score.Total(), h[j].score.Total()
	if si == sj {
		return h[i].randtag > h[j].randtag
	}
	return si < sj
}
func (h wireHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *wireHeap) Push(x interface{}) { *h = append(*h, x.(queuedWire)) }
func (h *wireHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ThreadContext is one worker's routing scratch space: its own queue,
// visited set, and backwards-search state, so that concurrently-running
// workers never share mutable state (spec §5/§9). RouteNets/FailedNets
// are the dispatcher's work list and result list for this worker.
type ThreadContext struct {
	RouteNets  []fabric.NetId
	FailedNets []fabric.NetId
	RNG        fabric.RNG

	routeArcs      []int
	queue          wireHeap
	visited        map[fabric.WireId]visitInfo
	processedSinks map[fabric.WireId]bool
	backwardsQueue []fabric.WireId
	backwardsPip   map[fabric.WireId]fabric.PipId
}

// NewThreadContext allocates a worker scratch space. rng should be a
// per-worker spawn of the router's RNG so tie-breaking stays independent
// across goroutines.
func NewThreadContext(rng fabric.RNG) *ThreadContext {
	return &ThreadContext{
		RNG:            rng,
		visited:        make(map[fabric.WireId]visitInfo),
		processedSinks: make(map[fabric.WireId]bool),
		backwardsPip:   make(map[fabric.WireId]fabric.PipId),
	}
}

// ArcRouteResult is the outcome of attempting to route one arc.
type ArcRouteResult int

const (
	ArcSuccess ArcRouteResult = iota
	ArcRetryWithoutBB
	ArcFatal
)

// backwardsIterLimit bounds the backwards-BFS prelude so it only ever
// catches the "cheap to extend existing routing" case and never
// degenerates into a full search (spec §4.3).
const backwardsIterLimit = 10

// routeArcBackwards attempts to extend the arc's existing (possibly
// partial) route tree from dst towards src via a short, strictly
// uncongested BFS. It either finds a complete uncongested path and binds
// it, or gives up cheaply so forward A* can take over.
func (r *Router) routeArcBackwards(t *ThreadContext, netUdata int, ad *arcHandle, src, dst fabric.WireId) bool {
	for k := range t.backwardsPip {
		delete(t.backwardsPip, k)
	}
	t.backwardsQueue = t.backwardsQueue[:0]
	t.backwardsQueue = append(t.backwardsQueue, dst)

	iter := 0
	for len(t.backwardsQueue) > 0 && iter < backwardsIterLimit {
		cursor := t.backwardsQueue[0]
		t.backwardsQueue = t.backwardsQueue[1:]

		var curPip fabric.PipId = fabric.NilPip
		cwd := r.cong.Wire(cursor)
		if cwd.HasNet(netUdata) {
			// Try to merge onto the existing, uncongested routing for
			// this net from cursor back to src.
			cursor2 := cursor
			mergeFail := false
			for r.cong.Wire(cursor2).HasNet(netUdata) {
				if r.cong.Wire(cursor2).BoundNetCount() > 1 {
					mergeFail = true
					break
				}
				p, _ := r.cong.Wire(cursor2).DrivingPip(netUdata)
				if p == fabric.NilPip {
					break
				}
				cursor2 = r.dev.PipSrcWire(p)
			}
			if !mergeFail && cursor2 == src {
				cursor2 = cursor
				for r.cong.Wire(cursor2).HasNet(netUdata) {
					p, _ := r.cong.Wire(cursor2).DrivingPip(netUdata)
					if p == fabric.NilPip {
						break
					}
					cursor2 = r.dev.PipSrcWire(p)
					t.backwardsPip[cursor2] = p
				}
				break
			}
			p, _ := cwd.DrivingPip(netUdata)
			curPip = p
		}

		didSomething := false
		for _, uh := range r.dev.PipsUphill(cursor) {
			didSomething = true
			if !r.dev.CheckPipAvail(uh) && r.dev.GetBoundPipNet(uh) != ad.netID {
				continue
			}
			if curPip != fabric.NilPip && curPip != uh {
				continue
			}
			next := r.dev.PipSrcWire(uh)
			if _, seen := t.backwardsPip[next]; seen {
				continue
			}
			nwd := r.cong.Wire(next)
			if nwd.Unavailable {
				continue
			}
			if nwd.ReservedNet != -1 && nwd.ReservedNet != netUdata {
				continue
			}
			if nwd.BoundNetCount() > 1 || (nwd.BoundNetCount() == 1 && !nwd.HasNet(netUdata)) {
				continue
			}
			t.backwardsQueue = append(t.backwardsQueue, next)
			t.backwardsPip[next] = uh
		}
		if didSomething {
			iter++
		}
	}

	if _, ok := t.backwardsPip[src]; !ok {
		return false
	}
	r.bindPipInternal(netUdata, ad, src, fabric.NilPip)
	cursorFwd := src
	for {
		v, ok := t.backwardsPip[cursorFwd]
		if !ok {
			break
		}
		cursorFwd = r.dev.PipDstWire(v)
		r.bindPipInternal(netUdata, ad, cursorFwd, v)
	}
	t.processedSinks[dst] = true
	return true
}

// routeArcForward is the forward A* search used when the backwards
// prelude can't extend existing routing. isBB constrains exploration to
// the arc's bounding box (expanded by the router's margin); it is
// always true for multi-threaded workers and only relaxed for a
// single-threaded retry (spec §4.3/§4.4).
func (r *Router) routeArcForward(t *ThreadContext, netUdata int, ad *arcHandle, src, dst fabric.WireId, isBB bool) bool {
	for k := range t.visited {
		delete(t.visited, k)
	}
	t.queue = t.queue[:0]

	base := WireScore{
		Cost:     0,
		Delay:    r.dev.WireDelay(src).MaxDelay(),
		TogoCost: GetTogoCost(r.dev, r.cong, netUdata, src, dst),
	}
	heap.Push(&t.queue, queuedWire{wire: src, pip: fabric.NilPip, score: base})
	t.visited[src] = visitInfo{Score: base, Pip: fabric.NilPip}

	bb := ad.bb.Expanded(r.Config.BBMarginX, r.Config.BBMarginY)
	span := (ad.bb.X1 - ad.bb.X0) + (ad.bb.Y1 - ad.bb.Y0)
	if span < 1 {
		span = 1
	}
	toExplore := 25000 * span
	iter := 0

	for t.queue.Len() > 0 && (!isBB || iter < toExplore) {
		curr := heap.Pop(&t.queue).(queuedWire)
		iter++

		for _, dh := range r.dev.PipsDownhill(curr.wire) {
			if isBB && !hitTestPip(bb, r.dev.PipLocation(dh)) {
				continue
			}
			if !r.dev.CheckPipAvail(dh) && r.dev.GetBoundPipNet(dh) != ad.netID {
				continue
			}
			next := r.dev.PipDstWire(dh)
			nwd := r.cong.Wire(next)
			if nwd.Unavailable {
				continue
			}
			if nwd.ReservedNet != -1 && nwd.ReservedNet != netUdata {
				continue
			}
			if p, has := nwd.DrivingPip(netUdata); has && p != dh {
				continue
			}
			nextScore := WireScore{
				Cost:     curr.score.Cost + ScoreWireForArc(r.dev, r.cong, r.nets[ad.netID], netUdata, ad.numUsers, next, dh, r.curCongWeight),
				Delay:    curr.score.Delay.Add(r.dev.PipDelay(dh)).Add(r.dev.WireDelay(next)),
				TogoCost: TogoInflation * GetTogoCost(r.dev, r.cong, netUdata, next, dst),
			}
			if v, ok := t.visited[next]; !ok || v.Score.Total() > nextScore.Total() {
				tag := t.RNG.Int63()
				heap.Push(&t.queue, queuedWire{wire: next, pip: dh, score: nextScore, randtag: tag})
				t.visited[next] = visitInfo{Score: nextScore, Pip: dh}
				if next == dst {
					limit := iter + 5
					if limit < toExplore {
						toExplore = limit
					}
				}
			}
		}
	}

	if _, ok := t.visited[dst]; !ok {
		return false
	}
	cursorBwd := dst
	for {
		vv := t.visited[cursorBwd]
		r.bindPipInternal(netUdata, ad, cursorBwd, vv.Pip)
		if vv.Pip == fabric.NilPip {
			break
		}
		cursorBwd = r.dev.PipSrcWire(vv.Pip)
	}
	t.processedSinks[dst] = true
	return true
}

func hitTestPip(bb fabric.BoundingBox, l fabric.Loc) bool {
	return bb.IsInsideInclusive(l.X, l.Y)
}

// RouteArc routes one (net, user) arc, trying the backwards prelude
// before falling back to forward A* (confined to the arc's box when isBB
// is set). If A* does not reach the sink it returns ArcRetryWithoutBB;
// any unbounded retry is made by the caller (spec: route_arc).
func (r *Router) RouteArc(t *ThreadContext, netID fabric.NetId, userIdx int, isMT, isBB bool) (ArcRouteResult, error) {
	netUdata := r.udata.Index(netID)
	nl := r.nl.Net(netID)
	usr := nl.Users[userIdx]

	srcWire, err := netstate.PortWire(r.nl, r.dev, nl.Driver.Cell, nl.Driver.Port)
	if err != nil {
		if isMT {
			return ArcFatal, nil
		}
		return ArcFatal, structuralErrorf(netID, "%v", err)
	}
	dstWire, err := netstate.PortWire(r.nl, r.dev, usr.Cell, usr.Port)
	if err != nil {
		if isMT {
			return ArcFatal, nil
		}
		return ArcFatal, structuralErrorf(netID, "%v", err)
	}

	if t.processedSinks[dstWire] {
		return ArcSuccess, nil
	}

	ad := &arcHandle{netID: netID, arc: &r.nets[netID].Arcs[userIdx], bb: r.nets[netID].Arcs[userIdx].BB, numUsers: len(nl.Users)}

	if r.routeArcBackwards(t, netUdata, ad, srcWire, dstWire) {
		return ArcSuccess, nil
	}
	if r.routeArcForward(t, netUdata, ad, srcWire, dstWire, isBB) {
		return ArcSuccess, nil
	}
	return ArcRetryWithoutBB, nil
}

// arcHandle bundles the identifiers RouteArc's helpers need without
// threading five separate parameters through every call.
type arcHandle struct {
	netID    fabric.NetId
	arc      *netstate.ArcData
	bb       fabric.BoundingBox
	numUsers int
}
