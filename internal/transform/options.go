package transform

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/polycat/internal/document"
)

type options struct {
	codec    document.Codec
	logger   *zap.SugaredLogger
	docIDs   func() string
	graphIDs func() string
}

// Option configures a lowering run.
type Option func(*options)

// WithCodec selects the document payload encoding. Default is canonical JSON.
func WithCodec(codec document.Codec) Option {
	return func(o *options) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIDGenerator replaces the generator used for documents and graph
// elements that carry no id.
func WithIDGenerator(next func() string) Option {
	return func(o *options) {
		if next != nil {
			o.docIDs = next
			o.graphIDs = next
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		codec:    document.JSONCodec{},
		logger:   zap.NewNop().Sugar(),
		docIDs:   document.NewID,
		graphIDs: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
