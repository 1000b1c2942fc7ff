package chart

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// runs splits rows [from, to) of ys into runs of finite points with the row
// index as x.
func runs(ys []float64, from, to int) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i := from; i < to; i++ {
		if !finite(ys[i]) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(i), Y: ys[i]})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func withAlpha(c color.Color, alpha float64) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(math.Round(alpha * 255))}
}

func rect(x0, y0, x1, y1 vg.Length) []vg.Point {
	return []vg.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func fillClipped(c *draw.Canvas, clr color.Color, pts []vg.Point) {
	if pts = c.ClipPolygonXY(pts); len(pts) > 2 {
		c.FillPolygon(clr, pts)
	}
}

// candles draws rows [from, to) as wicks and bodies.
type candles struct {
	open, high, low, close []float64
	from, to               int
	width                  float64
	up, down               color.Color
}

func (p *candles) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	for i := p.from; i < p.to; i++ {
		o, h, l, cl := p.open[i], p.high[i], p.low[i], p.close[i]
		if !finite(o) || !finite(h) || !finite(l) || !finite(cl) {
			continue
		}
		clr := p.up
		if cl < o {
			clr = p.down
		}
		x := trX(float64(i))
		c.StrokeLine2(draw.LineStyle{Color: clr, Width: vg.Points(1)}, x, trY(l), x, trY(h))

		x0, x1 := trX(float64(i)-p.width/2), trX(float64(i)+p.width/2)
		y0, y1 := trY(math.Min(o, cl)), trY(math.Max(o, cl))
		if y1-y0 < vg.Points(0.5) {
			c.StrokeLine2(draw.LineStyle{Color: clr, Width: vg.Points(0.5)}, x0, y0, x1, y0)
			continue
		}
		fillClipped(&c, clr, rect(x0, y0, x1, y1))
	}
}

// bars draws rows [from, to) as bars from zero.
type bars struct {
	y        []float64
	from, to int
	width    float64
	color    color.Color
}

func (p *bars) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	for i := p.from; i < p.to; i++ {
		if !finite(p.y[i]) || p.y[i] == 0 {
			continue
		}
		x0, x1 := trX(float64(i)-p.width/2), trX(float64(i)+p.width/2)
		fillClipped(&c, p.color, rect(x0, trY(0), x1, trY(p.y[i])))
	}
}

func (p *bars) Thumbnail(c *draw.Canvas) {
	c.FillPolygon(p.color, rect(c.Min.X, c.Min.Y, c.Max.X, c.Max.Y))
}

// band fills between y1 and y2 over rows [from, to), splitting segments
// where the two lines cross.
type band struct {
	y1, y2   []float64
	from, to int
	up, down color.Color
	line     draw.LineStyle
}

func (p *band) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	fill := func(xa, a1, a2, xb, b1, b2 float64) {
		clr := p.up
		if a1+b1 < a2+b2 {
			clr = p.down
		}
		pts := []vg.Point{
			{X: trX(xa), Y: trY(a1)}, {X: trX(xb), Y: trY(b1)},
			{X: trX(xb), Y: trY(b2)}, {X: trX(xa), Y: trY(a2)},
		}
		fillClipped(&c, clr, pts)
	}
	for i := p.from; i+1 < p.to; i++ {
		a1, a2, b1, b2 := p.y1[i], p.y2[i], p.y1[i+1], p.y2[i+1]
		if !finite(a1) || !finite(a2) || !finite(b1) || !finite(b2) {
			continue
		}
		da, db := a1-a2, b1-b2
		if da*db < 0 {
			t := da / (da - db)
			xm := float64(i) + t
			ym := a1 + t*(b1-a1)
			fill(float64(i), a1, a2, xm, ym, ym)
			fill(xm, ym, ym, float64(i+1), b1, b2)
			continue
		}
		fill(float64(i), a1, a2, float64(i+1), b1, b2)
	}
}

func (p *band) Thumbnail(c *draw.Canvas) {
	c.FillPolygon(p.up, rect(c.Min.X, c.Min.Y, c.Max.X, c.Max.Y))
	y := (c.Min.Y + c.Max.Y) / 2
	c.StrokeLine2(p.line, c.Min.X, y, c.Max.X, y)
}

// cursor is a vertical line across the data area.
type cursor struct {
	x     float64
	style draw.LineStyle
}

func (p *cursor) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, _ := plt.Transforms(&c)
	x := trX(p.x)
	if x < c.Min.X || x > c.Max.X {
		return
	}
	c.StrokeLine2(p.style, x, c.Min.Y, x, c.Max.Y)
}

func glyph(marker string) draw.GlyphDrawer {
	switch marker {
	case "o":
		return draw.RingGlyph{}
	case "s":
		return draw.BoxGlyph{}
	case "^":
		return draw.PyramidGlyph{}
	case "x":
		return draw.CrossGlyph{}
	case "+":
		return draw.PlusGlyph{}
	}
	return draw.CircleGlyph{}
}

func dashes(style string) []vg.Length {
	switch style {
	case LineDashed:
		return []vg.Length{vg.Points(4), vg.Points(2)}
	case LineDotted:
		return []vg.Length{vg.Points(1), vg.Points(2)}
	}
	return nil
}
