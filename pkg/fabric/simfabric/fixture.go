package simfabric

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// fixtureLexer tokenizes the grid-fixture grammar: a GRID statement
// giving the device's width/height, followed by one BEL statement per
// site type and its pin names. Grounded on pkg/bsdl/lexer.go's
// participle/v2 simple-lexer style (keyword-before-identifier ordering,
// a dedicated token for anything a bare identifier pattern would
// otherwise swallow).
var fixtureLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},

	{Name: "KwGrid", Pattern: `(?i)\bGRID\b`},
	{Name: "KwBel", Pattern: `(?i)\bBEL\b`},
	{Name: "KwIn", Pattern: `(?i)\bIN\b`},
	{Name: "KwOut", Pattern: `(?i)\bOUT\b`},

	// Dim must be tried before Ident, or "4x4" would tokenize as two
	// separate pieces with no token matching the literal "x" joiner.
	{Name: "Dim", Pattern: `[0-9]+x[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
})

type belStmt struct {
	Type    string   `"BEL" @Ident`
	Inputs  []string `("IN" @Ident+)?`
	Outputs []string `("OUT" @Ident+)?`
}

type fixtureFile struct {
	Dim  string     `"GRID" @Dim`
	Bels []*belStmt `@@*`
}

// FixtureParser parses the grid-fixture text format into a *Device.
type FixtureParser struct {
	parser *participle.Parser[fixtureFile]
}

// NewFixtureParser builds a FixtureParser, the same construction shape
// as pkg/bsdl.NewParser.
func NewFixtureParser() (*FixtureParser, error) {
	p, err := participle.Build[fixtureFile](
		participle.Lexer(fixtureLexer),
		participle.Elide("Comment", "Whitespace"),
	)
	if err != nil {
		return nil, fmt.Errorf("simfabric: failed to build fixture parser: %w", err)
	}
	return &FixtureParser{parser: p}, nil
}

// Parse reads a fixture from r and builds the grid device it describes.
func (fp *FixtureParser) Parse(r io.Reader) (*Device, error) {
	f, err := fp.parser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("simfabric: parse error: %w", err)
	}
	return buildDevice(f)
}

// ParseString parses a fixture from an in-memory string.
func (fp *FixtureParser) ParseString(input string) (*Device, error) {
	f, err := fp.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("simfabric: parse error: %w", err)
	}
	return buildDevice(f)
}

// ParseFile parses a fixture from disk.
func (fp *FixtureParser) ParseFile(path string) (*Device, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("simfabric: failed to open fixture: %w", err)
	}
	defer file.Close()
	return fp.Parse(file)
}

func buildDevice(f *fixtureFile) (*Device, error) {
	var width, height int
	if _, err := fmt.Sscanf(f.Dim, "%dx%d", &width, &height); err != nil {
		return nil, fmt.Errorf("simfabric: malformed GRID dimension %q: %w", f.Dim, err)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("simfabric: GRID dimension %q must be positive", f.Dim)
	}

	seen := make(map[string]bool)
	var types []BelTypeSpec
	for _, b := range f.Bels {
		if seen[b.Type] {
			return nil, fmt.Errorf("simfabric: duplicate BEL type %q", b.Type)
		}
		seen[b.Type] = true
		types = append(types, BelTypeSpec{
			Name:    b.Type,
			Inputs:  append([]string(nil), b.Inputs...),
			Outputs: append([]string(nil), b.Outputs...),
		})
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("simfabric: fixture declares no BEL types")
	}

	return NewGrid(Config{Width: width, Height: height, Types: types}), nil
}

// RenderFixture renders a Config back to the textual fixture format,
// letting tests round-trip a Config through the same grammar ParseString
// consumes.
func RenderFixture(cfg Config) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "GRID %dx%d\n", cfg.Width, cfg.Height)
	for _, t := range cfg.Types {
		fmt.Fprintf(&sb, "BEL %s", t.Name)
		if len(t.Inputs) > 0 {
			fmt.Fprintf(&sb, " IN %s", strings.Join(t.Inputs, " "))
		}
		if len(t.Outputs) > 0 {
			fmt.Fprintf(&sb, " OUT %s", strings.Join(t.Outputs, " "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
