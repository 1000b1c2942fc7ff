package chart

import (
	"image/color"
	"math"
	"strconv"

	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var backgrounds = []color.Color{
	color.RGBA{R: 0xFA, G: 0xFA, B: 0xFA, A: 0xFF},
	color.RGBA{R: 0xF5, G: 0xF5, B: 0xF5, A: 0xFF},
}

const figurePadding = 0.2 * vg.Inch

// window selects what one drawing shows: rows [from, to) are drawn, x spans
// [xmin, xmax] and rows [lo, hi) feed y autoscaling.
type window struct {
	from, to   int
	xmin, xmax float64
	lo, hi     int
	cursor     bool
	caption    string
}

func (c *Chart) fullWindow() window {
	n := c.frame.Len()
	return window{to: n, xmin: -1, xmax: float64(n), hi: n}
}

type legendEntry struct {
	label string
	thumb plot.Thumbnailer
}

// yRange accumulates the finite extent of the values a subplot scales to.
type yRange struct{ min, max float64 }

func newYRange() yRange { return yRange{min: math.Inf(1), max: math.Inf(-1)} }

func (r *yRange) add(vals []float64, lo, hi int) {
	hi = min(hi, len(vals))
	for i := max(lo, 0); i < hi; i++ {
		if finite(vals[i]) {
			r.min = math.Min(r.min, vals[i])
			r.max = math.Max(r.max, vals[i])
		}
	}
}

// bounds returns the range with a 5% margin on each side.
func (r yRange) bounds() (float64, float64) {
	if r.min > r.max {
		return 0, 1
	}
	margin := (r.max - r.min) * 0.05
	if margin == 0 {
		margin = math.Max(math.Abs(r.max)*0.05, 0.5)
	}
	return r.min - margin, r.max + margin
}

func (c *Chart) column(name string) ([]float64, error) {
	return c.frame.Column(name)
}

// xValues returns the x column, or the row index.
func (c *Chart) xValues() []float64 {
	if c.x.col != "" {
		if xs, err := c.frame.Column(c.x.col); err == nil {
			return xs
		}
	}
	xs := make([]float64, c.frame.Len())
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

func (c *Chart) xLabel(xs []float64, i int) string {
	if c.x.converter != nil {
		return c.x.converter(xs[i], c.x.format)
	}
	return strconv.FormatFloat(xs[i], 'f', -1, 64)
}

// tickStep picks 1, 2 or 5 times a power of ten so that span holds about
// eight ticks.
func tickStep(span int) int {
	raw := float64(span) / 8
	if raw <= 1 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if raw <= m*mag {
			return int(m * mag)
		}
	}
	return int(10 * mag)
}

// xTicks places ticks on whole rows. Only the bottom subplot gets labels.
func (c *Chart) xTicks(xs []float64, labels bool) plot.Ticker {
	return plot.TickerFunc(func(lo, hi float64) []plot.Tick {
		first := int(math.Max(math.Ceil(lo), 0))
		last := int(math.Min(math.Floor(hi), float64(len(xs)-1)))
		if last < first {
			return nil
		}
		step := tickStep(last - first)
		var ticks []plot.Tick
		for i := (first + step - 1) / step * step; i <= last; i += step {
			t := plot.Tick{Value: float64(i)}
			if labels {
				t.Label = c.xLabel(xs, i)
			}
			ticks = append(ticks, t)
		}
		return ticks
	})
}

func lineStyle(clr color.Color, width float64, style string) draw.LineStyle {
	return draw.LineStyle{Color: clr, Width: vg.Points(width), Dashes: dashes(style)}
}

func addLines(p *plot.Plot, ys []float64, from, to int, sty draw.LineStyle) error {
	for _, xy := range runs(ys, from, to) {
		ln, err := plotter.NewLine(xy)
		if err != nil {
			return err
		}
		ln.LineStyle = sty
		p.Add(ln)
	}
	return nil
}

// subplot builds the plot of one axis for w.
func (c *Chart) subplot(idx, ax int, w window, xs []float64, bottom bool) (*plot.Plot, error) {
	y := c.yAxis(ax)
	p := plot.New()
	p.BackgroundColor = backgrounds[idx%len(backgrounds)]

	grid := plotter.NewGrid()
	gridStyle := draw.LineStyle{Color: colornames.Lightgray, Width: vg.Points(0.5), Dashes: dashes(LineDotted)}
	grid.Vertical, grid.Horizontal = gridStyle, gridStyle
	if !c.x.grid {
		grid.Vertical.Color = nil
	}
	if !y.Grid {
		grid.Horizontal.Color = nil
	}
	p.Add(grid)

	lo, hi := 0, c.frame.Len()
	if y.Autoscale {
		lo, hi = w.lo, w.hi
	}
	yr := newYRange()
	var legend []legendEntry

	for _, layer := range c.layers[ax] {
		switch l := layer.(type) {
		case CandleLayer:
			o, err := c.column(l.Open)
			if err != nil {
				return nil, err
			}
			h, err := c.column(l.High)
			if err != nil {
				return nil, err
			}
			lw, err := c.column(l.Low)
			if err != nil {
				return nil, err
			}
			cl, err := c.column(l.Close)
			if err != nil {
				return nil, err
			}
			p.Add(&candles{open: o, high: h, low: lw, close: cl, from: w.from, to: w.to, width: l.Width, up: l.UpColor, down: l.DownColor})
			yr.add(lw, lo, hi)
			yr.add(h, lo, hi)

		case LineLayer:
			ys, err := c.column(l.Y)
			if err != nil {
				return nil, err
			}
			sty := lineStyle(l.Color, l.Width, l.Style)
			if err := addLines(p, ys, w.from, w.to, sty); err != nil {
				return nil, err
			}
			yr.add(ys, lo, hi)
			if l.Label != "" {
				legend = append(legend, legendEntry{l.Label, &plotter.Line{LineStyle: sty}})
			}

		case BarLayer:
			ys, err := c.column(l.Y)
			if err != nil {
				return nil, err
			}
			b := &bars{y: ys, from: w.from, to: w.to, width: l.Width, color: l.Color}
			p.Add(b)
			yr.add(ys, lo, hi)
			yr.add([]float64{0}, 0, 1)
			if l.Label != "" {
				legend = append(legend, legendEntry{l.Label, b})
			}

		case MarkLayer:
			ys, err := c.column(l.Y)
			if err != nil {
				return nil, err
			}
			gs := draw.GlyphStyle{Color: l.Color, Radius: vg.Points(math.Sqrt(l.Size) / 2), Shape: glyph(l.Marker)}
			var pts plotter.XYs
			for _, run := range runs(ys, w.from, w.to) {
				pts = append(pts, run...)
			}
			if len(pts) > 0 {
				sc, err := plotter.NewScatter(pts)
				if err != nil {
					return nil, err
				}
				sc.GlyphStyle = gs
				p.Add(sc)
			}
			yr.add(ys, lo, hi)
			if l.Label != "" {
				legend = append(legend, legendEntry{l.Label, &plotter.Scatter{GlyphStyle: gs}})
			}

		case BandLayer:
			y1, err := c.column(l.Y1)
			if err != nil {
				return nil, err
			}
			y2, err := c.column(l.Y2)
			if err != nil {
				return nil, err
			}
			sty := lineStyle(l.LineColor, l.LineWidth, LineSolid)
			b := &band{y1: y1, y2: y2, from: w.from, to: w.to,
				up: withAlpha(l.UpColor, l.Alpha), down: withAlpha(l.DownColor, l.Alpha), line: sty}
			p.Add(b)
			if err := addLines(p, y1, w.from, w.to, sty); err != nil {
				return nil, err
			}
			if err := addLines(p, y2, w.from, w.to, sty); err != nil {
				return nil, err
			}
			yr.add(y1, lo, hi)
			yr.add(y2, lo, hi)
			if l.Label != "" {
				legend = append(legend, legendEntry{l.Label, b})
			}
		}
	}

	if w.cursor && w.to > 0 {
		p.Add(&cursor{x: float64(w.to - 1), style: lineStyle(colornames.Dimgray, 0.7, LineDashed)})
	}
	if y.Legend {
		for _, e := range legend {
			p.Legend.Add(e.label, e.thumb)
		}
		p.Legend.Top, p.Legend.Left = true, true
	}

	p.Y.Label.Text = y.Title
	p.Y.Label.TextStyle.Color = colornames.Dimgray
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)
	p.X.Tick.Marker = c.xTicks(xs, bottom)
	p.X.Min, p.X.Max = w.xmin, w.xmax
	p.Y.Min, p.Y.Max = yr.bounds()
	return p, nil
}

// draw lays out the title line and the subplots on dc, top to bottom, with
// their data areas aligned on the left.
func (c *Chart) draw(dc draw.Canvas, w window) error {
	dc.FillPolygon(color.White, rect(dc.Min.X, dc.Min.Y, dc.Max.X, dc.Max.Y))
	dc.Min.X += figurePadding
	dc.Min.Y += figurePadding
	dc.Max.X -= figurePadding
	dc.Max.Y -= figurePadding

	axes := c.axes()
	xs := c.xValues()
	plots := make([]*plot.Plot, len(axes))
	var total float64
	for i, ax := range axes {
		p, err := c.subplot(i, ax, w, xs, i == len(axes)-1)
		if err != nil {
			return err
		}
		plots[i] = p
		total += c.yAxis(ax).Weight
	}

	top := dc.Max.Y - c.drawHeader(dc, w.caption)

	avail := top - dc.Min.Y
	subs := make([]draw.Canvas, len(plots))
	lefts := make([]vg.Length, len(plots))
	var maxLeft vg.Length
	for i, p := range plots {
		h := avail * vg.Length(c.yAxis(axes[i]).Weight/total)
		subs[i] = draw.Canvas{Canvas: dc.Canvas, Rectangle: vg.Rectangle{
			Min: vg.Point{X: dc.Min.X, Y: top - h},
			Max: vg.Point{X: dc.Max.X, Y: top},
		}}
		top -= h
		lefts[i] = p.DataCanvas(subs[i]).Min.X - subs[i].Min.X
		maxLeft = max(maxLeft, lefts[i])
	}
	for i, p := range plots {
		subs[i].Min.X += maxLeft - lefts[i]
		p.Draw(subs[i])
	}
	return nil
}

// drawHeader writes the title and the animation caption on the top line and
// returns the height used.
func (c *Chart) drawHeader(dc draw.Canvas, caption string) vg.Length {
	if c.title.text == "" && caption == "" {
		return 0
	}
	base := plot.New().Title.TextStyle
	var used vg.Length

	if c.title.text != "" {
		sty := base
		sty.Font.Size = vg.Points(c.title.fontSize)
		sty.YAlign = text.YTop
		x := (dc.Min.X + dc.Max.X) / 2
		sty.XAlign = text.XCenter
		switch c.title.loc {
		case TitleLeft:
			x, sty.XAlign = dc.Min.X, text.XLeft
		case TitleRight:
			x, sty.XAlign = dc.Max.X, text.XRight
		}
		dc.FillText(sty, vg.Point{X: x, Y: dc.Max.Y}, c.title.text)
		used = sty.Height(c.title.text)
	}
	if caption != "" {
		sty := base
		sty.Font.Size = vg.Points(12)
		sty.XAlign, sty.YAlign = text.XRight, text.YTop
		dc.FillText(sty, vg.Point{X: dc.Max.X, Y: dc.Max.Y}, caption)
		used = max(used, sty.Height(caption))
	}
	return used + vg.Points(6)
}
