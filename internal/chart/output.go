package chart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/color/palette"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

func (c *Chart) size() (vg.Length, vg.Length) {
	return vg.Length(c.width) * vg.Inch, vg.Length(c.height) * vg.Inch
}

func (c *Chart) image(w window) (*vgimg.Canvas, error) {
	width, height := c.size()
	img := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(c.dpi))
	if err := c.draw(draw.New(img), w); err != nil {
		return nil, err
	}
	return img, nil
}

func unsupported(op, path string) error {
	return apperrors.New(apperrors.ErrorTypeConfiguration, component, op,
		fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, filepath.Ext(path)))
}

// Save draws the chart to path. The extension selects png, jpg, tiff, svg,
// pdf or eps.
func (c *Chart) Save(path string) error {
	var out io.WriterTo
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		img, err := c.image(c.fullWindow())
		if err != nil {
			return err
		}
		switch ext {
		case ".png":
			out = vgimg.PngCanvas{Canvas: img}
		case ".jpg", ".jpeg":
			out = vgimg.JpegCanvas{Canvas: img}
		default:
			out = vgimg.TiffCanvas{Canvas: img}
		}
	case ".svg", ".pdf", ".eps":
		width, height := c.size()
		cw, err := draw.NewFormattedCanvas(width, height, ext[1:])
		if err != nil {
			return apperrors.New(apperrors.ErrorTypeConfiguration, component, "save", err)
		}
		if err := c.draw(draw.New(cw), c.fullWindow()); err != nil {
			return err
		}
		out = cw
	default:
		return unsupported("save", path)
	}
	return writeFile(path, func(w io.Writer) error {
		_, err := out.WriteTo(w)
		return err
	})
}

// Render writes the chart as PNG.
func (c *Chart) Render(w io.Writer) error {
	img, err := c.image(c.fullWindow())
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return apperrors.New(apperrors.ErrorTypeIO, component, "render", err)
	}
	return nil
}

// Show renders the chart to a temporary PNG file and returns its path.
func (c *Chart) Show() (string, error) {
	f, err := os.CreateTemp("", "chart-*.png")
	if err != nil {
		return "", apperrors.New(apperrors.ErrorTypeIO, component, "show", err)
	}
	renderErr := c.Render(f)
	if err := f.Close(); err != nil && renderErr == nil {
		renderErr = apperrors.New(apperrors.ErrorTypeIO, component, "show", err)
	}
	if renderErr != nil {
		os.Remove(f.Name())
		return "", renderErr
	}
	return f.Name(), nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeIO, component, "write_file", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return apperrors.New(apperrors.ErrorTypeIO, component, "write_file", err)
	}
	if err := f.Close(); err != nil {
		return apperrors.New(apperrors.ErrorTypeIO, component, "write_file", err)
	}
	return nil
}

// AnimationOptions controls SaveAnimation. Step is the number of rows added
// per frame and Interval the display time of a frame. A positive
// AutoScrollRange keeps only that many rows in view.
type AnimationOptions struct {
	Step            int
	Interval        time.Duration
	AutoScrollRange int
}

// Animation defaults.
const (
	DefaultStep     = 1
	DefaultInterval = 100 * time.Millisecond
)

// frames returns the windows of an animation: rows [0, to) for to from 0 to
// the frame length.
func (c *Chart) frames(opts AnimationOptions) []window {
	n := c.frame.Len()
	step := opts.Step
	if step <= 0 {
		step = DefaultStep
	}
	var out []window
	for to := 0; to <= n; to += step {
		w := window{to: to, cursor: true, xmin: -1, xmax: float64(n), hi: n}
		if r := opts.AutoScrollRange; r > 0 {
			lo := max(to-r, 0)
			hi := max(lo+r, to)
			w.xmin, w.xmax = float64(lo), float64(hi)
			w.lo, w.hi = lo, min(hi, n)
		}
		w.caption = fmt.Sprintf("Index: %d-%d / %d", w.lo, to, n)
		out = append(out, w)
	}
	return out
}

// SaveAnimation draws the chart row by row into a .gif or .html file.
func (c *Chart) SaveAnimation(path string, opts AnimationOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif":
		anim, err := c.gif(opts)
		if err != nil {
			return err
		}
		return writeFile(path, func(w io.Writer) error { return gif.EncodeAll(w, anim) })
	case ".html":
		frames, err := c.pngFrames(opts)
		if err != nil {
			return err
		}
		return writeFile(path, func(w io.Writer) error {
			return animationPage.Execute(w, struct {
				Frames   []string
				Interval int64
			}{frames, opts.Interval.Milliseconds()})
		})
	}
	return unsupported("save_animation", path)
}

func (c *Chart) gif(opts AnimationOptions) (*gif.GIF, error) {
	delay := int(opts.Interval / (10 * time.Millisecond))
	anim := &gif.GIF{}
	for _, w := range c.frames(opts) {
		img, err := c.image(w)
		if err != nil {
			return nil, err
		}
		anim.Image = append(anim.Image, paletted(img.Image()))
		anim.Delay = append(anim.Delay, delay)
	}
	return anim, nil
}

// paletted reduces img to the Plan 9 palette with Floyd-Steinberg dithering.
func paletted(img image.Image) *image.Paletted {
	b := img.Bounds()
	p := image.NewPaletted(b, palette.Plan9)
	xdraw.FloydSteinberg.Draw(p, b, img, b.Min)
	return p
}

func (c *Chart) pngFrames(opts AnimationOptions) ([]string, error) {
	var out []string
	var buf bytes.Buffer
	for _, w := range c.frames(opts) {
		img, err := c.image(w)
		if err != nil {
			return nil, err
		}
		buf.Reset()
		if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
			return nil, apperrors.New(apperrors.ErrorTypeIO, component, "save_animation", err)
		}
		out = append(out, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return out, nil
}

var animationPage = template.Must(template.New("animation").Parse(`<html><head><meta charset="utf-8"></head><body>
<div><img id="frame" style="max-width:100%"></div>
<div>
<button id="play">Pause</button>
<input id="slider" type="range" min="0" value="0" style="width:60%">
<span id="index"></span>
</div>
<script>
const frames = {{.Frames}};
const interval = {{.Interval}};
const img = document.getElementById("frame");
const slider = document.getElementById("slider");
const label = document.getElementById("index");
const button = document.getElementById("play");
slider.max = frames.length - 1;
let current = 0;
let timer = null;
function show(i) {
  current = i;
  img.src = "data:image/png;base64," + frames[i];
  slider.value = i;
  label.textContent = (i + 1) + " / " + frames.length;
}
function play() {
  button.textContent = "Pause";
  timer = setInterval(function () {
    if (current + 1 >= frames.length) { pause(); return; }
    show(current + 1);
  }, interval);
}
function pause() {
  button.textContent = "Play";
  clearInterval(timer);
  timer = null;
}
button.onclick = function () {
  if (timer) { pause(); return; }
  if (current + 1 >= frames.length) { show(0); }
  play();
};
slider.oninput = function () { pause(); show(Number(slider.value)); };
if (frames.length > 0) { show(0); play(); }
</script>
</body></html>
`))
