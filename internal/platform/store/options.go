package store

import (
	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/store/blob"
)

// Option mutates Store during Open
type Option func(*Store) error

// WithLogger sets the logger handed to every backend
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}

// WithBlobOptions forwards options to blob.Open, e.g. a filesystem or S3 client
func WithBlobOptions(opts ...blob.Option) Option {
	return func(s *Store) error {
		s.blobOpts = append(s.blobOpts, opts...)
		return nil
	}
}
