package blob

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"bazaar/internal/platform/config"
	perr "bazaar/internal/platform/errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Config addresses an S3-compatible bucket
type S3Config struct {
	Bucket          string `env:"S3_BUCKET" validate:"required"`
	Region          string `env:"S3_REGION" validate:"required"`
	Endpoint        string `env:"S3_ENDPOINT"` // set for S3-compatible stores; empty means AWS
	ForcePathStyle  bool   `env:"S3_FORCE_PATH_STYLE"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" validate:"required_with=AccessKeyID"`
	ACL             string `env:"S3_ACL"`     // e.g. public-read; empty leaves the bucket default
	CDNURL          string `env:"S3_CDN_URL"` // public base replacing the bucket URL when set
}

func (c S3Config) validate() error { return config.Validate(c) }

type s3Provider struct {
	client  s3iface.S3API
	bucket  string
	acl     string
	urlBase string
}

// newS3Client builds the SDK client; static keys win over the default chain
var newS3Client = func(cfg S3Config) (s3iface.S3API, error) {
	awsConfig := aws.NewConfig().
		WithRegion(cfg.Region).
		WithCredentialsChainVerboseErrors(true)
	if cfg.Endpoint != "" {
		awsConfig.WithEndpoint(cfg.Endpoint)
	}
	if cfg.ForcePathStyle {
		awsConfig.WithS3ForcePathStyle(true)
	}
	if cfg.AccessKeyID != "" {
		awsConfig.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "storage: constructing S3 session")
	}
	// resolve credentials now so a missing key pair or role fails boot, not every upload
	if _, err := sess.Config.Credentials.Get(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "storage: no S3 credentials (S3_ACCESS_KEY_ID/S3_SECRET_ACCESS_KEY or the AWS default chain)")
	}
	return s3.New(sess), nil
}

// publicURLBase is what object keys are appended to
func publicURLBase(cfg S3Config) string {
	if cfg.CDNURL != "" {
		return strings.TrimRight(cfg.CDNURL, "/")
	}
	if cfg.Endpoint != "" {
		ep := strings.TrimRight(cfg.Endpoint, "/")
		if !strings.Contains(ep, "://") {
			ep = "https://" + ep
		}
		if cfg.ForcePathStyle {
			return ep + "/" + cfg.Bucket
		}
		if u, err := url.Parse(ep); err == nil && u.Host != "" {
			u.Host = cfg.Bucket + "." + u.Host
			return strings.TrimRight(u.String(), "/")
		}
		return ep + "/" + cfg.Bucket
	}
	return "https://" + cfg.Bucket + ".s3." + cfg.Region + ".amazonaws.com"
}

func (p *s3Provider) put(ctx context.Context, key, contentType string, data []byte) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}
	if p.acl != "" {
		in.ACL = aws.String(p.acl)
	}
	_, err := p.client.PutObjectWithContext(ctx, in)
	return err
}

func (p *s3Provider) url(key string) string { return p.urlBase + "/" + key }
