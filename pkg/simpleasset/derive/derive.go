// Package derive computes secondary artifacts and structural metadata from
// primary media bytes, dispatched on the asset's media kind.
package derive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Request carries everything needed for one derivation run. Data holds the
// full primary blob; size bounding happens upstream of this package.
type Request struct {
	Data       []byte
	PrimaryKey string
	Kind       simpleasset.MediaKind
	MimeType   string
}

// Result is the output of a derivation run. ThumbnailKey is empty and
// Resolutions nil when the kind produces no artifacts; Metadata is always set.
type Result struct {
	Metadata     *simpleasset.DerivedMetadata
	ThumbnailKey string
	Resolutions  []simpleasset.Resolution
}

// Deriver runs kind-dispatched derivation, uploading any produced artifacts
// to the blob store.
type Deriver struct {
	store  simpleasset.BlobStore
	prober *Prober
	logger *slog.Logger
}

// Option represents a functional option for configuring the deriver
type Option func(*Deriver)

// WithProber sets the video prober
func WithProber(p *Prober) Option {
	return func(d *Deriver) {
		d.prober = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deriver) {
		d.logger = logger
	}
}

// New creates a new deriver. The blob store receives generated artifacts
// (currently image thumbnails).
func New(store simpleasset.BlobStore, options ...Option) (*Deriver, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	d := &Deriver{store: store}
	for _, option := range options {
		option(d)
	}
	if d.prober == nil {
		d.prober = NewProber(ProbeConfig{})
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d, nil
}

// Derive runs the derivation for one asset. Re-running it on the same bytes
// produces equivalent output and overwrites the same artifact keys, so
// at-least-once job delivery converges.
func (d *Deriver) Derive(ctx context.Context, req Request) (*Result, error) {
	switch req.Kind {
	case simpleasset.MediaKindImage:
		return d.deriveImage(ctx, req)
	case simpleasset.MediaKindVideo:
		return d.deriveVideo(ctx, req)
	case simpleasset.MediaKindDocument, simpleasset.MediaKindOther:
		return d.deriveBasic(req), nil
	default:
		return nil, simpleasset.MarkPermanent(fmt.Errorf("unknown media kind %q", req.Kind))
	}
}

// deriveBasic extracts minimal metadata for documents and unclassified files
func (d *Deriver) deriveBasic(req Request) *Result {
	return &Result{
		Metadata: &simpleasset.DerivedMetadata{
			Format: formatTag(req),
			Size:   int64(len(req.Data)),
		},
	}
}

func formatTag(req Request) string {
	if _, sub, found := strings.Cut(req.MimeType, "/"); found && sub != "" {
		return sub
	}
	return string(req.Kind)
}
