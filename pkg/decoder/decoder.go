package decoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrDecode = errors.New("failed to decode image")

// MaxPixels bounds width*height of an accepted image. Headers are checked
// before any pixel buffer is allocated.
const MaxPixels = 40_000_000

// Image is a decoded pixel array. Pix is row-major with Channels bytes per
// pixel in RGB order, or a single luminance byte for grayscale sources.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
	Format   string
}

func (im *Image) Empty() bool {
	return im == nil || im.Width <= 0 || im.Height <= 0 || len(im.Pix) < im.Width*im.Height*im.Channels
}

// DecodeBase64 accepts either a data URL ("data:image/png;base64,....") or a
// bare base64 payload.
func DecodeBase64(payload string) (*Image, error) {
	payload = strings.TrimSpace(payload)
	if idx := strings.Index(payload, ","); idx >= 0 {
		payload = payload[idx+1:]
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: invalid base64: %v", ErrDecode, err)
		}
		data = raw
	}

	return Decode(data)
}

func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img := FromImage(src)
	if img.Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	img.Format = format

	return img, nil
}

// FromImage flattens any image.Image into an Image, dropping alpha.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch g := src.(type) {
	case *image.Gray:
		pix := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			copy(pix[y*w:(y+1)*w], g.Pix[y*g.Stride:y*g.Stride+w])
		}
		return &Image{Width: w, Height: h, Channels: 1, Pix: pix}
	case *image.Gray16:
		pix := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				pix[y*w+x] = color.GrayModel.Convert(g.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			}
		}
		return &Image{Width: w, Height: h, Channels: 1, Pix: pix}
	}

	pix := make([]uint8, w*h*3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			pix[i], pix[i+1], pix[i+2] = c.R, c.G, c.B
			i += 3
		}
	}

	return &Image{Width: w, Height: h, Channels: 3, Pix: pix}
}

func (im *Image) ToImage() image.Image {
	rect := image.Rect(0, 0, im.Width, im.Height)
	if im.Channels == 1 {
		g := image.NewGray(rect)
		copy(g.Pix, im.Pix)
		return g
	}

	out := image.NewNRGBA(rect)
	for i, j := 0, 0; i+2 < len(im.Pix) && j+3 < len(out.Pix); i, j = i+3, j+4 {
		out.Pix[j], out.Pix[j+1], out.Pix[j+2], out.Pix[j+3] = im.Pix[i], im.Pix[i+1], im.Pix[i+2], 0xff
	}
	return out
}

// Encode writes the image as PNG.
func (im *Image) Encode(w io.Writer) error {
	if im.Empty() {
		return fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	return png.Encode(w, im.ToImage())
}

// BGR returns a copy of the pixels with red and blue swapped. Grayscale
// images are returned unchanged.
func (im *Image) BGR() []uint8 {
	out := make([]uint8, len(im.Pix))
	copy(out, im.Pix)
	if im.Channels != 3 {
		return out
	}
	for i := 0; i+2 < len(out); i += 3 {
		out[i], out[i+2] = out[i+2], out[i]
	}
	return out
}
