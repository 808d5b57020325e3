package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// S3API is the subset of the S3 client used by the S3 fetcher.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	s3.HeadObjectAPIClient
	s3.ListObjectsV2APIClient
}

// NewS3Client creates an S3 client from cfg. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies. A
// custom endpoint switches to path-style addressing for S3-compatible stores.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// S3 reads s3:// locations.
type S3 struct {
	client   S3API
	maxBytes int64
}

// NewS3 creates an S3 fetcher backed by client.
func NewS3(client S3API, maxBytes int64) *S3 {
	return &S3{client: client, maxBytes: maxBytes}
}

func (f *S3) Fetch(ctx context.Context, loc Location) ([]models.RawInput, error) {
	keys := []string{loc.Key}
	if loc.IsPrefix() {
		var err error
		if keys, err = f.list(ctx, loc.Bucket, loc.Key); err != nil {
			return nil, err
		}
	}

	inputs := make([]models.RawInput, 0, len(keys))
	for _, key := range keys {
		in, err := f.read(ctx, loc.Bucket, key)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func (f *S3) list(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *S3) read(ctx context.Context, bucket, key string) (models.RawInput, error) {
	in := models.RawInput{Name: path.Base(key)}

	if f.maxBytes > 0 {
		head, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return models.RawInput{}, fmt.Errorf("s3 head: %w", err)
		}
		if size := aws.ToInt64(head.ContentLength); size > f.maxBytes {
			in.SizeBytes = size
			in.MimeType = contentType(aws.ToString(head.ContentType), key)
			return in, nil
		}
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return models.RawInput{}, fmt.Errorf("s3 download: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return models.RawInput{}, fmt.Errorf("s3 download read: %w", err)
	}
	in.Bytes = data
	in.SizeBytes = int64(len(data))
	in.MimeType = contentType(aws.ToString(out.ContentType), key)
	return in, nil
}

func contentType(declared, key string) string {
	if declared == "" || declared == "binary/octet-stream" || declared == "application/octet-stream" {
		return typeByName(key)
	}
	return declared
}
