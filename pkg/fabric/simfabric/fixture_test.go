package simfabric

import (
	"testing"

	"github.com/fabricpnr/corepnr/pkg/fabric"
)

func TestParseFixtureBuildsGrid(t *testing.T) {
	input := `
	GRID 3x2
	BEL LUT4 IN I0 I1 I2 I3 OUT O
	BEL DFF IN D CLK OUT Q
	`

	parser, err := NewFixtureParser()
	if err != nil {
		t.Fatalf("failed to build parser: %v", err)
	}

	dev, err := parser.ParseString(input)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	const wantBels = 3 * 2 * 2 // 2 tile types per site, 3x2 tiles
	if got := len(dev.Bels()); got != wantBels {
		t.Errorf("Bels() = %d, want %d", got, wantBels)
	}

	b := dev.BelAt(1, 1, 0, "LUT4")
	if b == fabric.NilBel {
		t.Fatal("expected a LUT4 bel at (1,1,0)")
	}
	if dev.BelType(b) != "LUT4" {
		t.Errorf("BelType() = %q, want LUT4", dev.BelType(b))
	}
	if w := dev.BelPinWire(b, "O"); w == fabric.NilWire {
		t.Error("LUT4 output pin O has no wire")
	}
	if w := dev.BelPinWire(b, "I2"); w == fabric.NilWire {
		t.Error("LUT4 input pin I2 has no wire")
	}
}

func TestParseFixtureRejectsMalformedDim(t *testing.T) {
	parser, err := NewFixtureParser()
	if err != nil {
		t.Fatalf("failed to build parser: %v", err)
	}
	if _, err := parser.ParseString("GRID 4\nBEL LUT4 OUT O\n"); err == nil {
		t.Fatal("expected a parse error for a malformed GRID dimension")
	}
}

func TestParseFixtureRejectsNoBels(t *testing.T) {
	parser, err := NewFixtureParser()
	if err != nil {
		t.Fatalf("failed to build parser: %v", err)
	}
	if _, err := parser.ParseString("GRID 2x2\n"); err == nil {
		t.Fatal("expected an error for a fixture with no BEL types")
	}
}

func TestRenderFixtureRoundTrips(t *testing.T) {
	cfg := Config{
		Width:  2,
		Height: 2,
		Types: []BelTypeSpec{
			{Name: "LUT4", Inputs: []string{"I0", "I1", "I2", "I3"}, Outputs: []string{"O"}},
		},
	}

	parser, err := NewFixtureParser()
	if err != nil {
		t.Fatalf("failed to build parser: %v", err)
	}

	dev, err := parser.ParseString(RenderFixture(cfg))
	if err != nil {
		t.Fatalf("failed to parse rendered fixture: %v", err)
	}
	if got, want := len(dev.Bels()), cfg.Width*cfg.Height*len(cfg.Types); got != want {
		t.Errorf("Bels() = %d, want %d", got, want)
	}
}

func TestGridRoutingMesh(t *testing.T) {
	dev := NewGrid(Config{
		Width:  4,
		Height: 4,
		Types: []BelTypeSpec{
			{Name: "LUT4", Inputs: []string{"I0"}, Outputs: []string{"O"}},
		},
	})

	src := dev.BelAt(0, 0, 0, "LUT4")
	dst := dev.BelAt(3, 3, 0, "LUT4")
	srcWire := dev.BelPinWire(src, "O")
	dstWire := dev.BelPinWire(dst, "I0")

	// A reachability BFS over pips should connect any output to any
	// input within a small number of hops given the row/column mesh.
	visited := map[fabric.WireId]bool{srcWire: true}
	queue := []fabric.WireId{srcWire}
	found := false
	for depth := 0; depth < 6 && len(queue) > 0 && !found; depth++ {
		var next []fabric.WireId
		for _, w := range queue {
			if w == dstWire {
				found = true
				break
			}
			for _, p := range dev.PipsDownhill(w) {
				dw := dev.PipDstWire(p)
				if !visited[dw] {
					visited[dw] = true
					next = append(next, dw)
				}
			}
		}
		queue = next
	}
	if !found && !visited[dstWire] {
		t.Fatal("expected dst wire to be reachable from src wire through the grid mesh")
	}
}
