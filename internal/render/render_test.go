package render

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/starford/alignos/internal/interaction"
	"github.com/starford/alignos/internal/models"
)

func sampleScene() Scene {
	return Scene{
		Width:  400,
		Height: 300,
		View:   interaction.Transform{X: 10, Y: 20, K: 1.5},
		Nodes: []SceneNode{
			{ID: "p1", Type: models.EntityPerson, Label: "Sarah Chen", X: 100, Y: 100, Selected: true},
			{ID: "d1", Type: models.EntityDecision, Label: "Migrate all workloads to GCP", X: 200, Y: 150},
		},
		Links: []SceneLink{
			{Source: "p1", Target: "d1", Type: models.RelStakeholder, X1: 100, Y1: 100, X2: 200, Y2: 150},
		},
		Guide: &GuideLine{X1: 100, Y1: 100, X2: 150, Y2: 50},
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Sarah Chen", "Sarah Chen"},
		{"exactly15chars!", "exactly15chars!"},
		{"Migrate all workloads to GCP", "Migrate all ..."},
		{"Überraschungsei-Projekt", "Überraschung..."},
	}
	for _, tt := range tests {
		if got := Label(tt.in); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPaletteAndRadius(t *testing.T) {
	if css(Fill(models.EntityPerson)) != "#3b82f6" || css(Fill(models.EntityTeam)) != "#8b5cf6" ||
		css(Fill(models.EntityProject)) != "#10b981" || css(Fill(models.EntityDecision)) != "#f59e0b" {
		t.Error("unexpected palette")
	}
	if Radius(models.EntityPerson) != 20 || Radius(models.EntityTeam) != 25 ||
		Radius(models.EntityProject) != 22 || Radius(models.EntityDecision) != 18 {
		t.Error("unexpected radii")
	}
}

func TestSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := SVG(&buf, sampleScene()); err != nil {
		t.Fatalf("SVG: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<svg", "translate(10,20) scale(1.5)", "#3b82f6", "#f59e0b",
		"Migrate all ...", "stroke-dasharray:5,5", "</svg>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	if strings.Count(out, "<circle") != 2 {
		t.Errorf("circles = %d, want 2", strings.Count(out, "<circle"))
	}
}

func TestSVGEmptyScene(t *testing.T) {
	var buf bytes.Buffer
	if err := SVG(&buf, Scene{}); err != nil {
		t.Fatalf("SVG: %v", err)
	}
	if strings.Contains(buf.String(), "<circle") {
		t.Error("empty scene should have no nodes")
	}
	if !strings.Contains(buf.String(), `width="800"`) {
		t.Error("empty scene should use the default canvas")
	}
}

func TestPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := PNG(&buf, sampleScene()); err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("bounds = %v", b)
	}

	// Node p1 lands at (100*1.5+10, 100*1.5+20) = (160, 170).
	r, g, b, _ := img.At(160, 170).RGBA()
	if r>>8 != 0x3b || g>>8 != 0x82 || b>>8 != 0xf6 {
		t.Errorf("pixel at person centre = %02x%02x%02x", r>>8, g>>8, b>>8)
	}
}

func TestPNGEmptyScene(t *testing.T) {
	var buf bytes.Buffer
	if err := PNG(&buf, Scene{Width: 50, Height: 40}); err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := img.At(25, 20).RGBA()
	if r>>8 != 0xff || g>>8 != 0xff || b>>8 != 0xff {
		t.Errorf("empty canvas should be white")
	}
}
