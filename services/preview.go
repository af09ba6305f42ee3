package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/bbrks/go-blurhash"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	previewMaxSide = 64
	// Refuse to decode anything that would allocate more than this many pixels.
	previewMaxPixels = 40 * 1024 * 1024
)

// BuildPreview decodes a complete image and returns a 4x3 blurhash and a
// darkened average colour suitable as a loading placeholder.
func BuildPreview(data []byte) (string, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", err
	}
	if int64(cfg.Width)*int64(cfg.Height) > previewMaxPixels {
		return "", "", fmt.Errorf("image too large for preview: %dx%d", cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", "", err
	}
	small := downscale(img, previewMaxSide)
	hash, err := blurhash.Encode(4, 3, small)
	if err != nil {
		return "", "", err
	}
	return hash, dominantColor(small), nil
}

// downscale shrinks src so its longer side is at most max, keeping aspect ratio.
func downscale(src image.Image, max int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return src
	}
	scale := float64(max) / float64(w)
	if h > w {
		scale = float64(max) / float64(h)
	}
	tw := int(float64(w) * scale)
	th := int(float64(h) * scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func dominantColor(img image.Image) string {
	b := img.Bounds()
	var r, g, bl uint64
	var n uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			r += uint64(px.R)
			g += uint64(px.G)
			bl += uint64(px.B)
			n++
		}
	}
	if n == 0 {
		return "#1a1a2e"
	}
	// Darkened so it works as a background behind light text.
	return fmt.Sprintf("#%02x%02x%02x", r/n*70/100, g/n*70/100, bl/n*70/100)
}
