// Package s3store uploads match results to an S3-compatible bucket.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/timeutil"
)

const sinkName = "remote"

// Config locates the bucket. Endpoint and PathStyle support S3-compatible providers.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
	PathStyle bool
}

// Uploader is the upload capability of manager.Uploader.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Store writes one JSON object per match under {prefix}/{date}/{runID}/.
type Store struct {
	up     Uploader
	bucket string
	prefix string
	now    func() time.Time
}

// New builds a store backed by the AWS SDK. Static keys are used when both are set;
// otherwise the default credential chain applies.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3store: region is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint))
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewWithUploader(manager.NewUploader(client), cfg.Bucket, cfg.Prefix), nil
}

// NewWithUploader builds a store over an existing uploader.
func NewWithUploader(up Uploader, bucket, prefix string) *Store {
	return &Store{
		up:     up,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

func (s *Store) Name() string { return sinkName }

func (s *Store) Save(ctx context.Context, runID string, result domain.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return &domain.StorageError{Sink: sinkName, MatchID: result.Match.ID, Err: err}
	}
	key := s.Key(runID, result)
	_, err = s.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &domain.StorageError{Sink: sinkName, MatchID: result.Match.ID, Err: fmt.Errorf("upload %s: %w", key, err)}
	}
	return nil
}

// Key returns the object key used for result.
func (s *Store) Key(runID string, result domain.MatchResult) string {
	if runID == "" {
		runID = "adhoc"
	}
	name := result.Match.ID
	if name == "" {
		name = fmt.Sprintf("match-%04d", result.Index)
	}
	return path.Join(s.prefix, timeutil.FormatDate(s.now().UTC()), runID, name+".json")
}

// normaliseEndpoint prepends https:// when the endpoint has no scheme.
func normaliseEndpoint(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		if _, err := url.Parse(endpoint); err == nil {
			return endpoint
		}
	}
	return "https://" + endpoint
}
