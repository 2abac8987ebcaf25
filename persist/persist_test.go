package persist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dennetiere/optix-go"
)

// buildSample creates one of each supported element kind (source,
// mirror, film, grating) chained head-to-tail.
func buildSample(t *testing.T) *optix.System {
	t.Helper()
	sys := optix.NewSystem()
	if _, err := sys.CreateElement("src", "Source<XY,Grid>"); err != nil {
		t.Fatal(err)
	}
	if _, err := sys.CreateElement("mir", "Mirror<Sphere>"); err != nil {
		t.Fatal(err)
	}
	if _, err := sys.CreateElement("grt", "Grating<Poly1D,Plane>"); err != nil {
		t.Fatal(err)
	}
	if _, err := sys.CreateElement("det", "Film<Plane>"); err != nil {
		t.Fatal(err)
	}
	if err := sys.SetParameter("mir", "distance", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := sys.SetParameter("mir", "theta", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := sys.SetParameter("grt", "distance", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := sys.SetParameter("det", "distance", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := sys.Link("src", "mir"); err != nil {
		t.Fatal(err)
	}
	if err := sys.Link("mir", "grt"); err != nil {
		t.Fatal(err)
	}
	if err := sys.Link("grt", "det"); err != nil {
		t.Fatal(err)
	}
	return sys
}

func TestXMLRoundTrip(t *testing.T) {
	sys := buildSample(t)

	var buf1 bytes.Buffer
	if err := SaveXML(&buf1, sys); err != nil {
		t.Fatalf("SaveXML: %v", err)
	}

	loaded := optix.NewSystem()
	if err := LoadXML(strings.NewReader(buf1.String()), loaded); err != nil {
		t.Fatalf("LoadXML: %v", err)
	}

	var buf2 bytes.Buffer
	if err := SaveXML(&buf2, loaded); err != nil {
		t.Fatalf("SaveXML (2nd pass): %v", err)
	}

	if buf1.String() != buf2.String() {
		t.Fatalf("save-load-save XML diverged:\n--- first ---\n%s\n--- second ---\n%s", buf1.String(), buf2.String())
	}

	for _, name := range sys.Names() {
		if _, ok := loaded.Get(name); !ok {
			t.Errorf("element %q missing after round-trip", name)
		}
	}
	prev, next, err := loaded.NeighborNames("mir")
	if err != nil {
		t.Fatalf("NeighborNames: %v", err)
	}
	if prev != "src" || next != "grt" {
		t.Fatalf("chain not preserved: prev=%q next=%q", prev, next)
	}
}

func TestSpotDiagramDumpRoundTrip(t *testing.T) {
	d := optix.Diagram{
		Dim:   5,
		Count: 2,
		Lost:  1,
		Min:   []float64{-1, -2, -3, -4, 2.5e-8},
		Max:   []float64{1, 2, 3, 4, 2.5e-8},
		Mean:  []float64{0, 0.5, -0.5, 0, 2.5e-8},
		Sigma: []float64{1, 1.5, 2, 0.25, 0},
		Data: []float64{
			0.1, 0.2, -0.01, 0.02, 2.5e-8,
			-0.1, -0.2, 0.01, -0.02, 2.5e-8,
		},
	}

	var buf bytes.Buffer
	if err := SaveSpotDiagram(&buf, d); err != nil {
		t.Fatalf("SaveSpotDiagram: %v", err)
	}
	got, err := LoadSpotDiagram(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("LoadSpotDiagram: %v", err)
	}
	if got.Dim != d.Dim || got.Count != d.Count || got.Lost != d.Lost {
		t.Fatalf("header diverged: got %d/%d/%d want %d/%d/%d", got.Dim, got.Count, got.Lost, d.Dim, d.Count, d.Lost)
	}
	for i := range d.Data {
		if got.Data[i] != d.Data[i] {
			t.Fatalf("Data[%d] = %v, want %v", i, got.Data[i], d.Data[i])
		}
	}
	for i := range d.Sigma {
		if got.Min[i] != d.Min[i] || got.Max[i] != d.Max[i] || got.Mean[i] != d.Mean[i] || got.Sigma[i] != d.Sigma[i] {
			t.Fatalf("statistics column %d diverged", i)
		}
	}
}

func TestTextRoundTrip(t *testing.T) {
	sys := buildSample(t)

	var buf1 bytes.Buffer
	if err := SaveText(&buf1, sys); err != nil {
		t.Fatalf("SaveText: %v", err)
	}

	loaded := optix.NewSystem()
	if err := LoadText(strings.NewReader(buf1.String()), loaded); err != nil {
		t.Fatalf("LoadText: %v", err)
	}

	var buf2 bytes.Buffer
	if err := SaveText(&buf2, loaded); err != nil {
		t.Fatalf("SaveText (2nd pass): %v", err)
	}

	if buf1.String() != buf2.String() {
		t.Fatalf("save-load-save text diverged:\n--- first ---\n%s\n--- second ---\n%s", buf1.String(), buf2.String())
	}

	mir, ok := loaded.Get("mir")
	if !ok {
		t.Fatal("mir missing after round-trip")
	}
	p, ok := mir.Params.Get("theta")
	if !ok {
		t.Fatal("theta parameter missing")
	}
	if p.Value.Value != 0.5 {
		t.Fatalf("theta did not round-trip: got %v want 0.5", p.Value.Value)
	}
}
