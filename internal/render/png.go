package render

import (
	"fmt"
	"image/color"
	"io"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"
)

// PNG rasterises the scene.
func PNG(w io.Writer, s Scene) error {
	width, height := s.size()
	v := s.view()

	dc := gg.NewContext(width, height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.Push()
	dc.Translate(v.X, v.Y)
	dc.Scale(v.K, v.K)

	for _, l := range s.Links {
		if l.Highlighted {
			dc.SetColor(colorEdgeHot)
			dc.SetLineWidth(2.5)
		} else {
			dc.SetColor(colorEdge)
			dc.SetLineWidth(1.5)
		}
		dc.DrawLine(l.X1, l.Y1, l.X2, l.Y2)
		dc.Stroke()
	}

	if g := s.Guide; g != nil {
		dc.SetColor(colorGuide)
		dc.SetLineWidth(2)
		dc.SetDash(5, 5)
		dc.DrawLine(g.X1, g.Y1, g.X2, g.Y2)
		dc.Stroke()
		dc.SetDash()
	}

	for _, n := range s.Nodes {
		r := Radius(n.Type)
		fill := Fill(n.Type)
		text := colorText
		if n.Dimmed {
			fill = fade(fill)
			text = fade(text)
		}
		dc.SetColor(fill)
		dc.DrawCircle(n.X, n.Y, r)
		dc.Fill()

		if n.Selected || n.Hovered {
			dc.SetColor(colorSelection)
			dc.SetLineWidth(3)
		} else {
			dc.SetColor(colorStroke)
			dc.SetLineWidth(2)
		}
		dc.DrawCircle(n.X, n.Y, r)
		dc.Stroke()

		dc.SetColor(text)
		dc.DrawStringAnchored(Label(n.Label), n.X, n.Y+r+10, 0.5, 0.5)
	}
	dc.Pop()

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("render: encode png: %w", err)
	}
	return nil
}

// fade blends c 70% toward white.
func fade(c color.RGBA) color.RGBA {
	mix := func(v uint8) uint8 { return uint8(int(v) + (255-int(v))*7/10) }
	return color.RGBA{mix(c.R), mix(c.G), mix(c.B), 0xff}
}
