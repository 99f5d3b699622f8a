package stages

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// Crop applies the active ROI selected by the geometry stage. It runs
// after toning so cached intermediate stages stay full frame.
type Crop struct {
	KeepFullFrame bool
}

func (c *Crop) Name() string { return "crop" }

func (c *Crop) Process(pc *negative.Context, img *imagemath.Buffer) (*imagemath.Buffer, error) {
	if c.KeepFullFrame || pc.ActiveROI == nil || pc.ActiveROI.Empty() {
		return img, nil
	}
	roi := *pc.ActiveROI
	return img.Crop(roi.Y1, roi.Y2, roi.X1, roi.X2), nil
}

// LayoutDims describes the print layout in pixels: the paper, the scaled
// content, and the content offset on the paper.
type LayoutDims struct {
	PaperW, PaperH     int
	ContentW, ContentH int
	OffsetX, OffsetY   int
	DPI                int
	BorderPx           int
}

// CalculateLayoutDims sizes the paper around the content. sizeRef is the
// pixel budget of the long edge; the virtual DPI follows from it and the
// print size so previews and exports share one geometry.
func CalculateLayoutDims(contentW, contentH int, cfg negative.ExportConfig, sizeRef int) LayoutDims {
	dpi := int(float64(sizeRef) * 2.54 / math.Max(0.1, cfg.PrintSize))
	if dpi < 1 {
		dpi = 1
	}
	borderPx := int(cfg.BorderSize / 2.54 * float64(dpi))

	ratio, ok := ParseRatio(cfg.PaperRatio)
	if !ok {
		ratio = float64(contentW) / float64(max(contentH, 1))
	}
	if contentH > contentW && ratio > 1 {
		ratio = 1 / ratio
	} else if contentW > contentH && ratio < 1 {
		ratio = 1 / ratio
	}

	var paperW, paperH int
	if ratio >= 1 {
		paperW = sizeRef
		paperH = int(float64(sizeRef) / ratio)
	} else {
		paperH = sizeRef
		paperW = int(float64(sizeRef) * ratio)
	}

	availW := paperW - 2*borderPx
	availH := paperH - 2*borderPx
	if availW < 1 {
		availW = 1
	}
	if availH < 1 {
		availH = 1
	}
	scale := math.Min(float64(availW)/float64(max(contentW, 1)), float64(availH)/float64(max(contentH, 1)))
	cw := int(float64(contentW) * scale)
	ch := int(float64(contentH) * scale)
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}

	return LayoutDims{
		PaperW:   paperW,
		PaperH:   paperH,
		ContentW: cw,
		ContentH: ch,
		OffsetX:  (paperW - cw) / 2,
		OffsetY:  (paperH - ch) / 2,
		DPI:      dpi,
		BorderPx: borderPx,
	}
}

// Layout places the print on paper: scales the content and fills the
// border with the paper color.
type Layout struct {
	Config  negative.ExportConfig
	SizeRef int
}

// NewLayout returns the paper layout stage. sizeRef is the long-edge pixel
// budget of the output.
func NewLayout(cfg negative.ExportConfig, sizeRef int) *Layout {
	return &Layout{Config: cfg, SizeRef: sizeRef}
}

func (l *Layout) Name() string { return "layout" }

func (l *Layout) Process(pc *negative.Context, img *imagemath.Buffer) (*imagemath.Buffer, error) {
	if l.Config.BorderSize <= 0 && (l.Config.PaperRatio == negative.RatioFree || l.Config.PaperRatio == "") {
		return img, nil
	}
	dims := CalculateLayoutDims(img.W, img.H, l.Config, l.SizeRef)
	br, bg, bb, err := ParseHexColor(l.Config.BorderColor)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	return ComposeOnPaper(img, dims, br, bg, bb), nil
}

// ComposeOnPaper scales the content to the layout and centers it on a
// paper-colored sheet.
func ComposeOnPaper(img *imagemath.Buffer, dims LayoutDims, br, bg, bb float32) *imagemath.Buffer {
	content := imagemath.ResizeBilinear(img, dims.ContentW, dims.ContentH)
	paper := imagemath.NewBuffer(dims.PaperW, dims.PaperH)
	for i := 0; i < paper.Pixels(); i++ {
		j := i * 3
		paper.Data[j], paper.Data[j+1], paper.Data[j+2] = br, bg, bb
	}
	for y := 0; y < content.H; y++ {
		py := y + dims.OffsetY
		if py < 0 || py >= paper.H {
			continue
		}
		srcOff := y * content.W * 3
		dstOff := (py*paper.W + dims.OffsetX) * 3
		copy(paper.Data[dstOff:dstOff+content.W*3], content.Data[srcOff:srcOff+content.W*3])
	}
	return paper
}

// ParseHexColor parses "#rrggbb" (or "rrggbb") into unit RGB components.
func ParseHexColor(s string) (r, g, b float32, err error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return 1, 1, 1, nil
	}
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q", s)
	}
	v, perr := strconv.ParseUint(s, 16, 32)
	if perr != nil {
		return 0, 0, 0, fmt.Errorf("invalid color %q", s)
	}
	return float32(v>>16&0xff) / 255, float32(v>>8&0xff) / 255, float32(v&0xff) / 255, nil
}
