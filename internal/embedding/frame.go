package embedding

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

const (
	defaultMaxFrameSize = constants.MaxFrameSize
	defaultJPEGQuality  = constants.FrameJPEGQuality
)

// PrepareFrame decodes an image and, when its longest edge exceeds maxSize,
// scales it down and re-encodes it as JPEG. Small JPEG frames pass through
// untouched.
func PrepareFrame(data []byte, maxSize, quality int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty frame (%dx%d)", w, h)
	}

	if max(w, h) <= maxSize {
		if format == "jpeg" {
			return data, nil
		}
		return encodeJPEG(img, quality)
	}

	nw, nh := scaledSize(w, h, maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	return encodeJPEG(dst, quality)
}

// scaledSize fits w x h into a maxSize square keeping the aspect ratio.
func scaledSize(w, h, maxSize int) (int, int) {
	if w >= h {
		return maxSize, max(1, h*maxSize/w)
	}
	return max(1, w*maxSize/h), maxSize
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
