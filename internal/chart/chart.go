// Package chart renders frames as stacked candlestick, line, bar, mark and
// band charts, as still images or as frame-stepped animations.
//
// All Set methods only record configuration and return the chart, so calls
// can be chained. Columns are looked up when the chart is drawn.
package chart

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/colornames"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
	"github.com/johnayoung/go-crypto-datautil/internal/timeutil"
)

const component = "chart"

// Default figure geometry in inches and dots per inch.
const (
	DefaultWidth  = 16
	DefaultHeight = 12
	DefaultDPI    = 100
)

// DefaultXFormat is the x label format until SetX or SetCandlestick
// choose another.
const DefaultXFormat = "%y/%m/%d %H:%M:%S"

// Converter turns an x value into a tick label using the chart's x format.
type Converter func(x float64, format string) string

// DateConverter renders Unix seconds in UTC with a strftime format.
func DateConverter(x float64, format string) string {
	return timeutil.Strftime(time.Unix(0, int64(x*1e9)).UTC(), format)
}

// Title placements accepted by SetTitle.
const (
	TitleLeft   = "left"
	TitleCenter = "center"
	TitleRight  = "right"
)

// Line styles accepted by LineLayer.
const (
	LineSolid  = "solid"
	LineDashed = "dashed"
	LineDotted = "dotted"
)

// YAxis configures one subplot. Weight sets its share of the figure height
// relative to the other subplots.
type YAxis struct {
	Title     string
	Grid      bool
	Legend    bool
	Weight    float64
	Autoscale bool
}

func defaultYAxis() YAxis {
	return YAxis{Grid: true, Weight: 1, Autoscale: true}
}

// CandleLayer draws OHLC candles. Empty column names are looked up among the
// usual spellings, such as open, Open, o and op.
type CandleLayer struct {
	Open, High, Low, Close string
	UpColor, DownColor     color.Color
	Width                  float64
}

// LineLayer draws one column as a line.
type LineLayer struct {
	Y     string
	Width float64
	Style string
	Color color.Color
	Label string
}

// BarLayer draws one column as bars from zero.
type BarLayer struct {
	Y     string
	Color color.Color
	Width float64
	Label string
}

// MarkLayer draws one column as markers. Marker is one of . o s ^ x +.
type MarkLayer struct {
	Y      string
	Marker string
	Size   float64
	Color  color.Color
	Label  string
}

// BandLayer draws two columns and fills between them, with UpColor where Y1
// is above Y2 and DownColor elsewhere.
type BandLayer struct {
	Y1, Y2    string
	LineWidth float64
	LineColor color.Color
	UpColor   color.Color
	DownColor color.Color
	Alpha     float64
	Label     string
}

type xAxis struct {
	col       string
	grid      bool
	converter Converter
	format    string
}

type title struct {
	text     string
	loc      string
	fontSize float64
}

// Chart is a declarative chart over a frame.
type Chart struct {
	frame *table.Frame

	title  title
	width  float64
	height float64
	dpi    int
	x      xAxis
	y      map[int]YAxis
	layers map[int][]any
}

// New creates a chart over f with the default configuration.
func New(f *table.Frame) *Chart {
	c := &Chart{frame: f}
	return c.Reset()
}

// Reset drops all layers and restores the default configuration.
func (c *Chart) Reset() *Chart {
	c.title = title{loc: TitleCenter, fontSize: 16}
	c.width, c.height, c.dpi = DefaultWidth, DefaultHeight, DefaultDPI
	c.x = xAxis{grid: true, format: DefaultXFormat}
	c.y = map[int]YAxis{0: defaultYAxis()}
	c.layers = map[int][]any{}
	return c
}

// SetTitle sets the figure title. loc is left, center or right and a
// non-positive fontSize keeps the current size.
func (c *Chart) SetTitle(text, loc string, fontSize float64) *Chart {
	c.title.text = text
	switch loc {
	case TitleLeft, TitleCenter, TitleRight:
		c.title.loc = loc
	}
	if fontSize > 0 {
		c.title.fontSize = fontSize
	}
	return c
}

// SetSize sets the figure size in inches and its resolution.
func (c *Chart) SetSize(width, height float64, dpi int) *Chart {
	if width > 0 {
		c.width = width
	}
	if height > 0 {
		c.height = height
	}
	if dpi > 0 {
		c.dpi = dpi
	}
	return c
}

// SetX configures the x axis. An empty col keeps the row index, a nil
// converter keeps the current one and an empty format keeps the current
// format.
func (c *Chart) SetX(col string, grid bool, converter Converter, format string) *Chart {
	if col != "" && c.frame.HasColumn(col) {
		c.x.col = col
	}
	c.x.grid = grid
	if converter != nil {
		c.x.converter = converter
	}
	if format != "" {
		c.x.format = format
	}
	return c
}

// SetY configures subplot ax. Negative axes are ignored.
func (c *Chart) SetY(ax int, y YAxis) *Chart {
	if ax < 0 {
		return c
	}
	if y.Weight <= 0 {
		y.Weight = 1
	}
	c.y[ax] = y
	return c
}

func (c *Chart) add(ax int, l any) *Chart {
	if ax >= 0 {
		c.layers[ax] = append(c.layers[ax], l)
	}
	return c
}

// detect returns want when set, else the first candidate column the frame has.
func (c *Chart) detect(want string, candidates ...string) string {
	if want != "" {
		return want
	}
	for _, n := range candidates {
		if c.frame.HasColumn(n) {
			return n
		}
	}
	return ""
}

// SetCandlestick adds candles to subplot ax. When no converter is set and
// the x values look like Unix seconds, a date converter is installed with a
// format chosen from the spacing of the first two rows.
func (c *Chart) SetCandlestick(ax int, l CandleLayer) *Chart {
	l.Open = c.detect(l.Open, "open", "Open", "o", "op")
	l.High = c.detect(l.High, "high", "High", "h", "hi")
	l.Low = c.detect(l.Low, "low", "Low", "l", "lo")
	l.Close = c.detect(l.Close, "close", "Close", "c", "cl")
	l.UpColor = orColor(l.UpColor, color.RGBA{R: 0x53, G: 0xB9, B: 0x87, A: 0xFF})
	l.DownColor = orColor(l.DownColor, color.RGBA{R: 0xEB, G: 0x4D, B: 0x5C, A: 0xFF})
	if l.Width <= 0 {
		l.Width = 0.8
	}
	c.add(ax, l)

	if c.x.converter == nil {
		c.autoDateConverter()
	}
	return c
}

func (c *Chart) autoDateConverter() {
	if c.x.col == "" {
		return
	}
	xs, err := c.frame.Column(c.x.col)
	if err != nil || len(xs) < 2 || xs[0] <= 1e9 {
		return
	}
	c.x.converter = DateConverter
	switch unit := xs[1] - xs[0]; {
	case unit == 0:
	case unit < 60:
		c.x.format = "%m/%d %H:%M:%S"
	case unit < 86400:
		c.x.format = "%m/%d %H:%M"
	default:
		c.x.format = "%y/%m/%d"
	}
}

// SetLine adds a line to subplot ax. An empty Y uses a y or Y column.
func (c *Chart) SetLine(ax int, l LineLayer) *Chart {
	l.Y = c.detect(l.Y, "y", "Y")
	if l.Width <= 0 {
		l.Width = 1
	}
	if l.Style == "" {
		l.Style = LineSolid
	}
	l.Color = orColor(l.Color, colornames.Green)
	return c.add(ax, l)
}

// SetBar adds bars to subplot ax.
func (c *Chart) SetBar(ax int, l BarLayer) *Chart {
	l.Y = c.detect(l.Y, "y", "Y")
	l.Color = orColor(l.Color, colornames.Orange)
	if l.Width <= 0 {
		l.Width = 0.8
	}
	return c.add(ax, l)
}

// SetMark adds markers to subplot ax.
func (c *Chart) SetMark(ax int, l MarkLayer) *Chart {
	l.Y = c.detect(l.Y, "y", "Y")
	if l.Marker == "" {
		l.Marker = "."
	}
	if l.Size <= 0 {
		l.Size = 10
	}
	l.Color = orColor(l.Color, colornames.Green)
	return c.add(ax, l)
}

// SetBand adds a band to subplot ax. Empty columns use y1/Y1 and y2/Y2.
func (c *Chart) SetBand(ax int, l BandLayer) *Chart {
	l.Y1 = c.detect(l.Y1, "y1", "Y1")
	l.Y2 = c.detect(l.Y2, "y2", "Y2")
	if l.LineWidth <= 0 {
		l.LineWidth = 1
	}
	l.LineColor = orColor(l.LineColor, colornames.Dimgray)
	l.UpColor = orColor(l.UpColor, colornames.Skyblue)
	l.DownColor = orColor(l.DownColor, colornames.Pink)
	if l.Alpha <= 0 {
		l.Alpha = 0.2
	}
	return c.add(ax, l)
}

// axes returns the subplots that have layers, top to bottom.
func (c *Chart) axes() []int {
	out := make([]int, 0, len(c.layers))
	for ax := range c.layers {
		out = append(out, ax)
	}
	sort.Ints(out)
	return out
}

func (c *Chart) yAxis(ax int) YAxis {
	if y, ok := c.y[ax]; ok {
		return y
	}
	return defaultYAxis()
}

func orColor(c, def color.Color) color.Color {
	if c == nil {
		return def
	}
	return c
}

// ParseColor accepts #RRGGBB, #RRGGBBAA and SVG color names.
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") && (len(s) == 7 || len(s) == 9) {
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err == nil {
			if len(s) == 7 {
				return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
			}
			return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
		}
	}
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return c, nil
	}
	return nil, apperrors.New(apperrors.ErrorTypeValidation, component, "parse_color",
		fmt.Errorf("%w: unknown color %q", apperrors.ErrInvalidArgument, s))
}
