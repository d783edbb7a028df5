package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Quality ladders. Lossy formats descend in quality; PNG ascends in
// compression effort since the pixels never change.
var (
	jpegQualities = []int{85, 75, 65, 50, 35, 20, 10}
	webpQualities = []float32{85, 75, 60, 45, 30, 15}
	pngEfforts    = []imaging.EncodeOption{
		imaging.PNGCompressionLevel(png.DefaultCompression),
		imaging.PNGCompressionLevel(png.BestCompression),
	}
)

// tryEncoder produces one candidate encoding at a target width and ladder
// rung. One rung of a one-rung ladder means the format has a single knob
// (resolution only).
type tryEncoder interface {
	OriginalWidth() int
	Rungs() int
	TryEncode(width, rung int) ([]byte, error)
}

func newEncoder(format string, data []byte) (tryEncoder, error) {
	switch format {
	case "gif":
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode gif: %w", err)
		}
		if len(g.Image) == 0 {
			return nil, fmt.Errorf("gif has no frames")
		}
		return &gifEncoder{src: g}, nil
	case "jpeg", "png", "webp", "tiff":
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", format, err)
		}
		return &stillEncoder{img: img, format: format}, nil
	default:
		return nil, fmt.Errorf("no re-encode path for format %q", format)
	}
}

// stillEncoder re-encodes single-frame images. The scaled image is cached per
// width so every rung of a ladder reuses one resize.
type stillEncoder struct {
	img    image.Image
	format string

	scaledW int
	scaled  image.Image
}

func (e *stillEncoder) OriginalWidth() int { return e.img.Bounds().Dx() }

func (e *stillEncoder) Rungs() int {
	switch e.format {
	case "jpeg":
		return len(jpegQualities)
	case "webp":
		return len(webpQualities)
	case "png":
		return len(pngEfforts)
	default:
		return 1
	}
}

func (e *stillEncoder) TryEncode(width, rung int) ([]byte, error) {
	if e.scaled == nil || e.scaledW != width {
		e.scaled = imaging.Resize(e.img, width, 0, imaging.Lanczos)
		e.scaledW = width
	}

	var buf bytes.Buffer
	var err error
	switch e.format {
	case "jpeg":
		err = imaging.Encode(&buf, e.scaled, imaging.JPEG, imaging.JPEGQuality(jpegQualities[rung]))
	case "png":
		err = imaging.Encode(&buf, e.scaled, imaging.PNG, pngEfforts[rung])
	case "webp":
		err = webp.Encode(&buf, e.scaled, &webp.Options{Quality: webpQualities[rung]})
	case "tiff":
		err = imaging.Encode(&buf, e.scaled, imaging.TIFF)
	default:
		err = fmt.Errorf("unknown still format %q", e.format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// gifEncoder rescales every frame so animation survives the resize; the only
// knob is resolution. Frame offsets are scaled with the canvas.
type gifEncoder struct {
	src *gif.GIF
}

func (e *gifEncoder) OriginalWidth() int {
	if e.src.Config.Width > 0 {
		return e.src.Config.Width
	}
	return e.src.Image[0].Bounds().Dx()
}

func (e *gifEncoder) Rungs() int { return 1 }

func (e *gifEncoder) TryEncode(width, _ int) ([]byte, error) {
	origW := e.OriginalWidth()
	if origW == 0 {
		return nil, fmt.Errorf("gif has zero width")
	}
	scale := float64(width) / float64(origW)

	out := &gif.GIF{
		LoopCount:       e.src.LoopCount,
		BackgroundIndex: e.src.BackgroundIndex,
		Delay:           append([]int(nil), e.src.Delay...),
		Disposal:        append([]byte(nil), e.src.Disposal...),
	}
	for _, frame := range e.src.Image {
		b := frame.Bounds()
		nw := scaleDim(b.Dx(), scale)
		nh := scaleDim(b.Dy(), scale)
		resized := imaging.Resize(frame, nw, nh, imaging.Lanczos)

		rect := image.Rect(0, 0, nw, nh).
			Add(image.Pt(int(float64(b.Min.X)*scale), int(float64(b.Min.Y)*scale)))
		pal := image.NewPaletted(rect, frame.Palette)
		draw.FloydSteinberg.Draw(pal, rect, resized, resized.Bounds().Min)
		out.Image = append(out.Image, pal)

		// The logical screen must contain every scaled frame.
		if rect.Max.X > out.Config.Width {
			out.Config.Width = rect.Max.X
		}
		if rect.Max.Y > out.Config.Height {
			out.Config.Height = rect.Max.Y
		}
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scaleDim(d int, scale float64) int {
	n := int(float64(d) * scale)
	if n < 1 {
		return 1
	}
	return n
}
