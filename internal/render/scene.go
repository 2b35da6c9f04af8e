// Package render draws a laid-out graph scene as SVG or PNG.
package render

import (
	"fmt"
	"image/color"

	"github.com/starford/alignos/internal/interaction"
	"github.com/starford/alignos/internal/models"
)

// Scene is everything needed to draw one frame. Node and link coordinates
// are in layout space; View maps them to the canvas.
type Scene struct {
	Width  int                   `json:"width"`
	Height int                   `json:"height"`
	View   interaction.Transform `json:"view"`
	State  string                `json:"state"`
	Nodes  []SceneNode           `json:"nodes"`
	Links  []SceneLink           `json:"links"`
	Guide  *GuideLine            `json:"guide,omitempty"`
}

// SceneNode is a positioned node.
type SceneNode struct {
	ID       string            `json:"id"`
	Type     models.EntityType `json:"type"`
	Label    string            `json:"label"`
	X        float64           `json:"x"`
	Y        float64           `json:"y"`
	Selected bool              `json:"selected,omitempty"`
	Hovered  bool              `json:"hovered,omitempty"`
	Dimmed   bool              `json:"dimmed,omitempty"`
}

// SceneLink is a positioned link.
type SceneLink struct {
	Source      string                  `json:"source"`
	Target      string                  `json:"target"`
	Type        models.RelationshipType `json:"type"`
	X1          float64                 `json:"x1"`
	Y1          float64                 `json:"y1"`
	X2          float64                 `json:"x2"`
	Y2          float64                 `json:"y2"`
	Highlighted bool                    `json:"highlighted,omitempty"`
}

// GuideLine is the in-progress connection.
type GuideLine struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

var (
	colorPerson   = color.RGBA{0x3b, 0x82, 0xf6, 0xff}
	colorTeam     = color.RGBA{0x8b, 0x5c, 0xf6, 0xff}
	colorProject  = color.RGBA{0x10, 0xb9, 0x81, 0xff}
	colorDecision = color.RGBA{0xf5, 0x9e, 0x0b, 0xff}
	colorOther    = color.RGBA{0x6b, 0x72, 0x80, 0xff}

	colorBackdrop  = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorEdge      = color.RGBA{0x94, 0xa3, 0xb8, 0xff}
	colorEdgeHot   = color.RGBA{0x47, 0x55, 0x69, 0xff}
	colorGuide     = color.RGBA{0x3b, 0x82, 0xf6, 0xff}
	colorStroke    = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorSelection = color.RGBA{0x11, 0x18, 0x27, 0xff}
	colorText      = color.RGBA{0x1f, 0x29, 0x37, 0xff}
)

// Fill is the node colour for an entity type.
func Fill(t models.EntityType) color.RGBA {
	switch t {
	case models.EntityPerson:
		return colorPerson
	case models.EntityTeam:
		return colorTeam
	case models.EntityProject:
		return colorProject
	case models.EntityDecision:
		return colorDecision
	}
	return colorOther
}

// Radius is the node radius for an entity type.
func Radius(t models.EntityType) float64 {
	switch t {
	case models.EntityPerson:
		return 20
	case models.EntityTeam:
		return 25
	case models.EntityProject:
		return 22
	case models.EntityDecision:
		return 18
	}
	return 16
}

const (
	labelMax  = 15
	labelKeep = 12
)

// Label shortens labels longer than 15 characters to 12 plus an ellipsis.
func Label(s string) string {
	runes := []rune(s)
	if len(runes) <= labelMax {
		return s
	}
	return string(runes[:labelKeep]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (s Scene) size() (int, int) {
	w, h := s.Width, s.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 600
	}
	return w, h
}

func (s Scene) view() interaction.Transform {
	if s.View.K == 0 {
		return interaction.Identity
	}
	return s.View
}
