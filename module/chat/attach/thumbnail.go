package attach

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"strings"
	"time"

	// register the decoders for the allow-listed image types
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/pkg/errors"
)

// thumbMaxEdge bounds the longer edge of a derived thumbnail.
const thumbMaxEdge = 200

// GenerateThumbnail decodes the image, scales it proportionally so the
// longer edge is at most 200, re-encodes as JPEG and uploads it under the
// thumbnails namespace. Returns the thumbnail URL, or "" when the source is
// not an image or any step fails; absence of a thumbnail never fails the
// surrounding upload.
func (p *Pipeline) GenerateThumbnail(ctx context.Context, name, mimeType string, data []byte) string {
	if !strings.HasPrefix(mimeType, "image/") {
		return ""
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logThumbFailure(name, errors.Wrap(err, "decode"))
		return ""
	}

	bounds := src.Bounds()
	w, h := ThumbSize(bounds.Dx(), bounds.Dy())
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 80}); err != nil {
		logThumbFailure(name, errors.Wrap(err, "encode"))
		return ""
	}

	key := fmt.Sprintf("thumbnails/%d_thumb_%s", time.Now().UnixMilli(), name)
	url, err := p.blobs.Put(ctx, key, bytes.NewReader(out.Bytes()), int64(out.Len()), "image/jpeg", nil)
	if err != nil {
		logThumbFailure(name, errors.Wrap(err, "upload"))
		return ""
	}
	return url
}

// ThumbSize scales (w, h) proportionally so the longer edge is at most
// thumbMaxEdge; images already small enough come back unchanged.
func ThumbSize(w, h int) (int, int) {
	if w >= h {
		if w > thumbMaxEdge {
			h = int(math.Round(float64(h) * thumbMaxEdge / float64(w)))
			w = thumbMaxEdge
		}
	} else if h > thumbMaxEdge {
		w = int(math.Round(float64(w) * thumbMaxEdge / float64(h)))
		h = thumbMaxEdge
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
