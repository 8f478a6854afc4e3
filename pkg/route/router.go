package route

import (
	"fmt"
	"io"

	"github.com/fabricpnr/corepnr/pkg/congestion"
	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
	"github.com/fabricpnr/corepnr/pkg/netstate"
)

// Config tunes the router's iteration and search behavior. The zero
// value is not usable; construct one with DefaultConfig and override
// selectively.
type Config struct {
	// BBMarginX/Y extend every arc's bounding box during bounded search
	// (spec §4.3): how far outside the direct source-to-sink box the
	// search may still explore.
	BBMarginX, BBMarginY int
	// StartCongWeight is curr_cong_weight's value for the first
	// iteration; it doubles every iteration after that.
	StartCongWeight float64
	// HistCongWeight is the (fixed) per-iteration historical congestion
	// increment.
	HistCongWeight float64
	// MaxIterations bounds the negotiated-congestion loop as a
	// last-resort safety valve; 0 means unbounded (run until resolved).
	MaxIterations int
	// Seed drives the router's deterministic RNG.
	Seed int64
}

// DefaultConfig matches the teacher-derived constants used throughout
// this package (bb_margin_x/y = 4, curr_cong_weight starts at 0.5,
// hist_cong_weight fixed at 1.0).
func DefaultConfig() Config {
	return Config{
		BBMarginX:       4,
		BBMarginY:       4,
		StartCongWeight: 0.5,
		HistCongWeight:  1.0,
		Seed:            1,
	}
}

// Router runs the negotiated-congestion routing algorithm (spec §4)
// against a fabric.Device and netlist.Netlist. Build one with NewRouter
// and drive it with Run.
type Router struct {
	Config Config

	dev fabric.Device
	nl  netlist.Netlist

	udata       *netlist.UdataTable
	netsByUdata []fabric.NetId
	nets        map[fabric.NetId]*netstate.NetData
	cong        *congestion.Map

	curCongWeight float64
	rng           fabric.RNG

	midX, midY int

	totalWireUse  int
	overusedWires int
	totalOveruse  int
	archFail      int
	failedNets    map[int]struct{}

	// Iterations is the number of outer loop passes Run has completed.
	Iterations int
}

// NewRouter builds a Router, running the setup passes (net/wire state,
// reserved-wire discovery, spatial partitioning) but not yet routing
// anything (spec: setup_nets/setup_wires/find_all_reserved_wires/
// partition_nets, called once at the start of router_test).
func NewRouter(dev fabric.Device, nl netlist.Netlist, cfg Config) (*Router, error) {
	udata := netlist.NewUdataTable(nl.Nets())
	nets, err := netstate.SetupNets(nl, dev, udata)
	if err != nil {
		return nil, err
	}

	netsByUdata := make([]fabric.NetId, udata.Len())
	for _, id := range nl.Nets() {
		if idx := udata.Index(id); idx >= 0 {
			netsByUdata[idx] = id
		}
	}

	cong := congestion.NewMap(dev, udata.Index)
	netstate.FindAllReservedWires(dev, cong, nl, nets, udata)

	r := &Router{
		Config:        cfg,
		dev:           dev,
		nl:            nl,
		udata:         udata,
		netsByUdata:   netsByUdata,
		nets:          nets,
		cong:          cong,
		curCongWeight: cfg.StartCongWeight,
		rng:           fabric.NewDeterministicRNG(cfg.Seed),
		failedNets:    make(map[int]struct{}),
	}
	r.PartitionNets()
	return r, nil
}

func (r *Router) markFailed(netID fabric.NetId) {
	if idx := r.udata.Index(netID); idx >= 0 {
		r.failedNets[idx] = struct{}{}
	}
}

// updateCongestion re-scans every wire, growing history cost on
// overused wires and recording which nets must be retried (spec:
// update_congestion).
func (r *Router) updateCongestion() {
	totals := r.cong.UpdateCongestion(r.Config.HistCongWeight)
	r.totalWireUse = totals.TotalWireUse
	r.overusedWires = totals.OverusedWires
	r.totalOveruse = totals.TotalOveruse
	r.failedNets = totals.FailedNetUdata
}

// Run executes the full negotiated-congestion loop: route everything,
// raise congestion costs, retry only what's still contested, until no
// wire is overused, then commit the result to the device (spec §4.1).
// It returns once the device's binding table reflects a fully legal
// routing, or an error if a structural problem made that impossible.
func (r *Router) Run() error {
	queue := append([]fabric.NetId(nil), r.netsByUdata...)
	r.Iterations = 0

	for {
		r.Iterations++
		r.shuffleQueue(queue)
		if err := r.DoRoute(queue); err != nil {
			return err
		}
		r.updateCongestion()

		if r.overusedWires == 0 {
			r.BindAndCheckAll()
		}

		queue = queue[:0]
		for idx := range r.failedNets {
			queue = append(queue, r.netsByUdata[idx])
		}

		if len(r.failedNets) == 0 {
			return nil
		}
		if r.Config.MaxIterations > 0 && r.Iterations >= r.Config.MaxIterations {
			return fmt.Errorf("router: failed to converge after %d iterations (%d nets still congested)", r.Iterations, len(r.failedNets))
		}
		r.curCongWeight *= 2
	}
}

// shuffleQueue reorders queue in place by shuffling the dense udata
// indices (so the permutation is reproducible from the RNG state alone,
// independent of the order nets happened to fail in) and mapping back
// to net ids (spec: sorted_shuffle applied to route_queue).
func (r *Router) shuffleQueue(queue []fabric.NetId) {
	idxs := make([]int, len(queue))
	for i, id := range queue {
		idxs[i] = r.udata.Index(id)
	}
	r.rng.SortedShuffle(idxs)
	for i, idx := range idxs {
		queue[i] = r.netsByUdata[idx]
	}
}

// WriteHeatmap writes a CSV grid of per-tile wire usage (or overuse, if
// congestionOnly is set), estimating each bound wire's location from its
// driving pip (wires have no location of their own in this model). Rows
// are y, columns are x (spec: write_heatmap).
func (r *Router) WriteHeatmap(w io.Writer, congestionOnly bool) error {
	type cell struct{ x, y, val int }
	var cells []cell
	maxX, maxY := 0, 0

	for _, wire := range r.dev.Wires() {
		wd := r.cong.Wire(wire)
		if wd.BoundNetCount() == 0 {
			continue
		}
		val := wd.BoundNetCount()
		if congestionOnly {
			val--
		}
		var drv fabric.PipId = fabric.NilPip
		wd.ForEachNet(func(n int) {
			if drv != fabric.NilPip {
				return
			}
			if p, ok := wd.DrivingPip(n); ok && p != fabric.NilPip {
				drv = p
			}
		})
		if drv == fabric.NilPip {
			continue
		}
		loc := r.dev.PipLocation(drv)
		if loc.X > maxX {
			maxX = loc.X
		}
		if loc.Y > maxY {
			maxY = loc.Y
		}
		if val > 0 {
			cells = append(cells, cell{loc.X, loc.Y, val})
		}
	}

	grid := make([][]int, maxY+1)
	for y := range grid {
		grid[y] = make([]int, maxX+1)
	}
	for _, c := range cells {
		grid[c.y][c.x] += c.val
	}

	for y := 0; y <= maxY; y++ {
		for x := 0; x <= maxX; x++ {
			if _, err := fmt.Fprintf(w, "%d,", grid[y][x]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// Totals reports the router's most recent congestion summary, useful
// for progress logging by callers.
func (r *Router) Totals() (totalWireUse, overusedWires, totalOveruse, archFail int) {
	return r.totalWireUse, r.overusedWires, r.totalOveruse, r.archFail
}
