package theme

import (
	"strings"
	"testing"
)

const gpl = `GIMP Palette
Name: test
Columns: 2
# comment
0 0 0 black
255 255 255 white
300 0 0 out of range
`

func TestParseGPL(t *testing.T) {
	p, err := ParseGPL(strings.NewReader(gpl))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "test" || len(p.Colors) != 2 {
		t.Fatalf("palette = %+v", p)
	}
	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n")); err == nil {
		t.Fatal("expected error for an empty palette")
	}
}

func TestLookupInterpolates(t *testing.T) {
	p, _ := ParseGPL(strings.NewReader(gpl))
	if c := p.Lookup(-1); c != (RGB{0, 0, 0}) {
		t.Errorf("below range = %v", c)
	}
	if c := p.Lookup(2); c != (RGB{255, 255, 255}) {
		t.Errorf("above range = %v", c)
	}
	if c := p.Lookup(0.5); c[0] < 126 || c[0] > 128 {
		t.Errorf("midpoint = %v", c)
	}
}

func TestNewFallsBackToPlasma(t *testing.T) {
	th := New(nil)
	if th.Palette.Name != "plasma" {
		t.Fatalf("palette = %s", th.Palette.Name)
	}
	if string(th.Color(0)) != "#0d0887" {
		t.Fatalf("Color(0) = %s", th.Color(0))
	}
	if th.Velocity(127) != th.Success() {
		t.Fatal("full velocity is not the brightest color")
	}
}

func TestLoadGPLMissing(t *testing.T) {
	if _, err := LoadGPL("/nonexistent/palette.gpl"); err == nil {
		t.Fatal("expected error")
	}
}
