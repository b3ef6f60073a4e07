package derive

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
)

const (
	// thumbnailMaxWidth bounds generated previews. Narrower sources keep
	// their original width; images are never upscaled.
	thumbnailMaxWidth = 300

	thumbnailJPEGQuality = 80
)

// deriveImage decodes the primary bytes, extracts intrinsic dimensions and
// format, and uploads a width-bounded JPEG preview under the derived key.
// Undecodable bytes are a permanent failure: retrying cannot fix corrupt media.
func (d *Deriver) deriveImage(ctx context.Context, req Request) (*Result, error) {
	img, format, err := image.Decode(bytes.NewReader(req.Data))
	if err != nil {
		return nil, simpleasset.MarkPermanent(
			fmt.Errorf("%w: %v", simpleasset.ErrUnsupportedImage, err))
	}

	bounds := img.Bounds()
	metadata := &simpleasset.DerivedMetadata{
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Format:     format,
		Size:       int64(len(req.Data)),
		ColorSpace: colorSpace(img.ColorModel()),
		Channels:   channels(img.ColorModel()),
	}

	thumbnail := img
	if bounds.Dx() > thumbnailMaxWidth {
		thumbnail = resize.Resize(thumbnailMaxWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumbnail, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return nil, simpleasset.MarkPermanent(fmt.Errorf("encode thumbnail: %w", err))
	}

	thumbnailKey := objectkey.ThumbnailKey(req.PrimaryKey)
	if err := d.store.Upload(ctx, thumbnailKey, &buf, "image/jpeg"); err != nil {
		// Upload failures are transient; the retry re-generates the preview.
		return nil, &simpleasset.StorageError{Key: thumbnailKey, Op: "upload", Err: err}
	}

	return &Result{
		Metadata:     metadata,
		ThumbnailKey: thumbnailKey,
	}, nil
}

func colorSpace(model color.Model) string {
	switch model {
	case color.YCbCrModel:
		return "ycbcr"
	case color.GrayModel, color.Gray16Model:
		return "gray"
	case color.CMYKModel:
		return "cmyk"
	default:
		return "rgb"
	}
}

func channels(model color.Model) int {
	switch model {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.CMYKModel:
		return 4
	default:
		return 3
	}
}
