// Package s3verify checks through the S3 data interface that newly created
// buckets can actually be reached.
package s3verify

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

const defaultRegion = "us-east-1"

// Config for the S3 endpoint of the target system.
type Config struct {
	// e.g. https://ecs.example.com:9021
	Endpoint  string
	AccessKey string
	SecretKey string
	// ECS ignores the region but request signing needs one
	Region string
	// Skip TLS certificate verification
	Insecure bool
}

// Enabled reports whether an endpoint is configured.
func (c *Config) Enabled() bool {
	return c != nil && c.Endpoint != ""
}

type Verifier struct {
	svc s3iface.S3API
}

// New builds a Verifier for cfg.
func New(cfg Config) (*Verifier, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("no S3 endpoint configured")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("S3 verification needs an access key and a secret key")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg := &aws.Config{
		Region:           aws.String(region),
		Endpoint:         aws.String(cfg.Endpoint),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		MaxRetries:       aws.Int(0),
	}
	if cfg.Insecure {
		awsCfg.HTTPClient = insecureHTTPClient()
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create S3 session")
	}
	return &Verifier{svc: s3.New(sess)}, nil
}

func insecureHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
}

// NewWithAPI wraps an existing S3 client.
func NewWithAPI(svc s3iface.S3API) *Verifier {
	return &Verifier{svc: svc}
}

// VerifyBucket issues a HEAD on the bucket and returns an error unless it
// exists and the credentials may access it.
func (v *Verifier) VerifyBucket(ctx context.Context, bucket string) error {
	_, err := v.svc.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return errors.Wrapf(err, "HEAD bucket %s failed", bucket)
	}
	return nil
}
