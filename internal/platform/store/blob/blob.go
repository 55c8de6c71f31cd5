// Package blob stores binary objects under a logical folder and returns the
// locator rows persist. The provider is chosen once when Storage is opened.
package blob

import (
	"context"
	"fmt"
	"time"

	perr "bazaar/internal/platform/errors"
	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/metrics"

	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/spf13/afero"
)

// Provider names the backing store
type Provider string

// Supported providers
const (
	ProviderLocal Provider = "local"
	ProviderS3    Provider = "s3"
)

// Local provider defaults
const (
	DefaultLocalRoot  = "public"
	DefaultPublicBase = "/"
)

// Config selects and configures the provider
type Config struct {
	Enabled  bool
	Provider Provider

	LocalRoot  string // directory served at PublicBase
	PublicBase string

	S3     S3Config
	Limits Limits
}

// Object is the locator of a stored payload. URL is what rows persist.
type Object struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Upload is one item of a batch
type Upload struct {
	Filename string
	Data     []byte
}

// BatchError reports the item that aborted StoreMany
type BatchError struct {
	Index    int
	Filename string
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("storage: batch item %d (%s): %v", e.Index, e.Filename, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Storage writes objects through exactly one of local or s3
type Storage struct {
	provider Provider
	local    *localProvider
	s3       *s3Provider
	limits   Limits
	log      logger.Logger
	now      func() time.Time
}

// Option adjusts Open
type Option func(*options)

type options struct {
	fs       afero.Fs
	s3Client s3iface.S3API
}

// WithFs replaces the OS filesystem of the local provider
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithS3Client replaces the SDK client of the s3 provider
func WithS3Client(c s3iface.S3API) Option { return func(o *options) { o.s3Client = c } }

// Open validates cfg and builds the provider; missing s3 settings fail here, never per call
func Open(cfg Config, log logger.Logger, opts ...Option) (*Storage, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderLocal
	}
	st := &Storage{
		provider: cfg.Provider,
		limits:   cfg.Limits,
		log:      log.With().Str("component", "blob").Str("provider", string(cfg.Provider)).Logger(),
		now:      time.Now,
	}

	switch cfg.Provider {
	case ProviderLocal:
		fs := o.fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		root, base := cfg.LocalRoot, cfg.PublicBase
		if root == "" {
			root = DefaultLocalRoot
		}
		if base == "" {
			base = DefaultPublicBase
		}
		st.local = &localProvider{fs: fs, root: root, publicBase: base}
	case ProviderS3:
		if err := cfg.S3.validate(); err != nil {
			return nil, err
		}
		client := o.s3Client
		if client == nil {
			c, err := newS3Client(cfg.S3)
			if err != nil {
				return nil, err
			}
			client = c
		}
		st.s3 = &s3Provider{client: client, bucket: cfg.S3.Bucket, acl: cfg.S3.ACL, urlBase: publicURLBase(cfg.S3)}
	default:
		return nil, perr.Configf("storage: unknown provider %q", cfg.Provider)
	}
	return st, nil
}

// Provider reports the active provider
func (s *Storage) Provider() Provider {
	if s == nil {
		return ""
	}
	return s.provider
}

var errDisabled = perr.Configf("storage: disabled")

// Store writes data under folder with a generated name that keeps only the
// extension of filename. Write failures are returned, never retried.
// A nil Storage (blob disabled) answers a config error.
func (s *Storage) Store(ctx context.Context, data []byte, filename, folder string) (Object, error) {
	if s == nil {
		return Object{}, errDisabled
	}
	folder, err := cleanFolder(folder)
	if err != nil {
		return Object{}, err
	}
	if err := s.limits.check(data); err != nil {
		return Object{}, err
	}

	name := objectName(s.now(), filename)
	key := objectKey(folder, name)

	var obj Object
	switch s.provider {
	case ProviderLocal:
		err = s.local.write(key, data)
		obj = Object{URL: s.local.url(key), Key: key}
	case ProviderS3:
		err = s.s3.put(ctx, key, ContentType(Ext(filename)), data)
		obj = Object{URL: s.s3.url(key), Key: key}
	}

	if err != nil {
		metrics.StorageWritesTotal.WithLabelValues(string(s.provider), metrics.Fail).Inc()
		s.log.Error().Err(err).Str("key", key).Msg("object write failed")
		return Object{}, perr.Storagef(err, "storage: write %s", key)
	}
	metrics.StorageWritesTotal.WithLabelValues(string(s.provider), metrics.Ok).Inc()
	metrics.StorageWriteBytes.WithLabelValues(string(s.provider)).Observe(float64(len(data)))
	logger.From(s.log, ctx).Debug().Str("key", key).Int("bytes", len(data)).Msg("object stored")
	return obj, nil
}

// StoreMany stores uploads one after another in order. The first failure
// stops the batch; the objects already written are returned with a *BatchError.
func (s *Storage) StoreMany(ctx context.Context, uploads []Upload, folder string) ([]Object, error) {
	if s == nil {
		return nil, errDisabled
	}
	out := make([]Object, 0, len(uploads))
	for i, u := range uploads {
		if err := ctx.Err(); err != nil {
			return out, &BatchError{Index: i, Filename: u.Filename, Err: err}
		}
		obj, err := s.Store(ctx, u.Data, u.Filename, folder)
		if err != nil {
			return out, &BatchError{Index: i, Filename: u.Filename, Err: err}
		}
		out = append(out, obj)
	}
	return out, nil
}
