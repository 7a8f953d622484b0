package escpos

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// MaxLogoWidth is the printable width in dots of an 80mm head.
const MaxLogoWidth = 384

const (
	lumaThreshold = 150
	maxRasterRows = 0xFFFF
)

// decodeLogo accepts plain base64 or a data URI. Anything undecodable yields
// nil, never an error: a receipt without its logo still prints.
func decodeLogo(encoded string) image.Image {
	data := strings.TrimSpace(encoded)
	if i := strings.IndexByte(data, ','); i >= 0 {
		data = data[i+1:]
	}
	if data == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	return img
}

// Raster flattens img onto white, scales it down to MaxLogoWidth and packs it
// into a GS v 0 monochrome raster command followed by LF. It returns nil for
// empty images or images too tall to address.
func Raster(img image.Image) []byte {
	if img == nil {
		return nil
	}
	size := img.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil
	}

	flat := imaging.Overlay(imaging.New(size.X, size.Y, color.White), img, image.Pt(0, 0), 1.0)
	if size.X > MaxLogoWidth {
		height := int(math.RoundToEven(float64(size.Y) * MaxLogoWidth / float64(size.X)))
		if height < 1 {
			height = 1
		}
		flat = imaging.Resize(flat, MaxLogoWidth, height, imaging.Linear)
	}

	w, h := flat.Bounds().Dx(), flat.Bounds().Dy()
	if h > maxRasterRows {
		return nil
	}
	rowBytes := (w + 7) / 8

	out := make([]byte, 0, 8+rowBytes*h+1)
	out = append(out, gs, 'v', '0', 0,
		byte(rowBytes&0xFF), byte(rowBytes>>8),
		byte(h&0xFF), byte(h>>8))

	for y := 0; y < h; y++ {
		row := make([]byte, rowBytes)
		for x := 0; x < w; x++ {
			i := y*flat.Stride + x*4
			r, g, b := int(flat.Pix[i]), int(flat.Pix[i+1]), int(flat.Pix[i+2])
			if (r*299+g*587+b*114)/1000 < lumaThreshold {
				row[x/8] |= 0x80 >> (x % 8)
			}
		}
		out = append(out, row...)
	}
	return append(out, lf)
}
