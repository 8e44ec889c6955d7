package gui

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ashenforge/rendercore/rerr"
)

// GlyphRect locates one rasterized glyph inside an atlas bitmap, in pixels.
type GlyphRect struct {
	Rune     rune
	X, Y     int
	W, H     int
	AdvanceX float32
}

// BuildAtlas rasterizes every rune in runes from face into a single
// alpha-only bitmap packed in left-to-right rows, wrapping to a new row at
// width. It returns the AtlasUpdate ready for Overlay.SetAtlas alongside the
// per-glyph placement the host needs to emit UVs for each rune.
//
// Grounded on golang.org/x/image/font's Face.Glyph contract (dot, mask,
// maskp, advance) the way the corpus's shiny font/Drawer package walks a
// string: row-packing here just replaces Drawer's left-to-right pen advance
// with a fixed-width atlas layout.
func BuildAtlas(face font.Face, runes []rune, width int) (AtlasUpdate, []GlyphRect, error) {
	if face == nil {
		return AtlasUpdate{}, nil, rerr.Newf(rerr.BadInput, "gui.BuildAtlas", "face must not be nil")
	}
	if width <= 0 {
		return AtlasUpdate{}, nil, rerr.Newf(rerr.BadInput, "gui.BuildAtlas", "width must be positive, got %d", width)
	}

	const padding = 1

	rects := make([]GlyphRect, 0, len(runes))
	penX, rowY, rowH := padding, padding, 0

	type placed struct {
		r     rune
		dr    image.Rectangle
		mask  image.Image
		maskp image.Point
		x, y  int
		adv   float32
	}
	all := make([]placed, 0, len(runes))

	for _, r := range runes {
		dr, mask, maskp, advFixed, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		adv := float32(advFixed) / 64

		w := dr.Dx()
		h := dr.Dy()
		if penX+w+padding > width {
			penX = padding
			rowY += rowH + padding
			rowH = 0
		}
		if h > rowH {
			rowH = h
		}

		all = append(all, placed{r: r, dr: dr, mask: mask, maskp: maskp, x: penX, y: rowY, adv: adv})
		penX += w + padding
	}

	height := rowY + rowH + padding
	if height <= 0 {
		height = 1
	}

	img := image.NewAlpha(image.Rect(0, 0, width, height))
	for _, p := range all {
		dst := image.Rect(p.x, p.y, p.x+p.dr.Dx(), p.y+p.dr.Dy())
		draw.Draw(img, dst, p.mask, p.maskp, draw.Src)
		rects = append(rects, GlyphRect{
			Rune: p.r, X: p.x, Y: p.y, W: p.dr.Dx(), H: p.dr.Dy(), AdvanceX: p.adv,
		})
	}

	return AtlasUpdate{
		Width:  uint32(width),
		Height: uint32(height),
		Pixels: img.Pix,
	}, rects, nil
}
