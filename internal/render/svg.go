package render

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
)

// SVG writes the scene as an SVG document.
func SVG(w io.Writer, s Scene) error {
	width, height := s.size()
	v := s.view()

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Gtransform(fmt.Sprintf("translate(%g,%g) scale(%g)", v.X, v.Y, v.K))

	for _, l := range s.Links {
		style := fmt.Sprintf("stroke:%s;stroke-width:1.5;stroke-opacity:0.6", css(colorEdge))
		if l.Highlighted {
			style = fmt.Sprintf("stroke:%s;stroke-width:2.5", css(colorEdgeHot))
		}
		canvas.Line(px(l.X1), px(l.Y1), px(l.X2), px(l.Y2), style)
	}

	if g := s.Guide; g != nil {
		canvas.Line(px(g.X1), px(g.Y1), px(g.X2), px(g.Y2),
			fmt.Sprintf("stroke:%s;stroke-width:2;stroke-dasharray:5,5", css(colorGuide)))
	}

	for _, n := range s.Nodes {
		r := Radius(n.Type)
		stroke, strokeW := colorStroke, 2.0
		if n.Selected || n.Hovered {
			stroke, strokeW = colorSelection, 3.0
		}
		opacity := 1.0
		if n.Dimmed {
			opacity = 0.3
		}
		canvas.Circle(px(n.X), px(n.Y), px(r),
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%g;opacity:%g", css(Fill(n.Type)), css(stroke), strokeW, opacity))
		canvas.Text(px(n.X), px(n.Y+r+14), Label(n.Label),
			fmt.Sprintf("fill:%s;font-size:12px;font-family:sans-serif;text-anchor:middle;opacity:%g", css(colorText), opacity))
	}

	canvas.Gend()
	canvas.End()
	return nil
}

func px(f float64) int {
	return int(math.Round(f))
}
