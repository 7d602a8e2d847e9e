// Package s3 stores exports in an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/olimci/bootslot/pkg/exports"
	"github.com/olimci/bootslot/pkg/utils/fileutils"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
	// TempDir stages uploads so their length is known up front.
	TempDir string
}

// Bucket implements exports.Store over an S3 bucket. Entry IDs are object keys.
type Bucket struct {
	client  *s3.Client
	bucket  string
	prefix  string
	tempDir string
}

func New(ctx context.Context, cfg Config) (*Bucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &Bucket{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  normalizePrefix(cfg.Prefix),
		tempDir: cfg.TempDir,
	}, nil
}

func (b *Bucket) Type() string { return exports.BackendS3 }

func (b *Bucket) List(ctx context.Context, prefix string) ([]exports.Entry, error) {
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.key(prefix)),
	})

	var out []exports.Entry
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", b.bucket, b.key(prefix), err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := b.name(key)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			out = append(out, exports.Entry{ID: key, Name: name})
		}
	}
	exports.SortByName(out)
	return out, nil
}

func (b *Bucket) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	res, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("get object %s: %w", id, exports.ErrNotFound)
		}
		return nil, fmt.Errorf("get object %s: %w", id, err)
	}
	return res.Body, nil
}

func (b *Bucket) Put(ctx context.Context, name string, r io.Reader) (exports.Entry, error) {
	if name == "" || strings.Contains(name, "/") {
		return exports.Entry{}, fmt.Errorf("invalid export name %q", name)
	}

	staged, err := fileutils.WriteTemp(b.tempDir, "upload-*.img", r)
	if err != nil {
		return exports.Entry{}, err
	}
	defer os.Remove(staged)

	f, err := os.Open(staged)
	if err != nil {
		return exports.Entry{}, fmt.Errorf("open staged upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return exports.Entry{}, fmt.Errorf("stat staged upload: %w", err)
	}

	key := b.key(name)
	if _, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/octet-stream"),
	}); err != nil {
		return exports.Entry{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return exports.Entry{ID: key, Name: name}, nil
}

// NotifyInserted confirms the object is visible; buckets have no index to
// update.
func (b *Bucket) NotifyInserted(ctx context.Context, e exports.Entry) error {
	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(e.ID),
	}); err != nil {
		return fmt.Errorf("head object %s: %w", e.ID, err)
	}
	return nil
}

func (b *Bucket) key(name string) string {
	return b.prefix + name
}

func (b *Bucket) name(key string) string {
	return strings.TrimPrefix(key, b.prefix)
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return path.Clean(prefix) + "/"
}
