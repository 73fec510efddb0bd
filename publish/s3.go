// publish/s3.go
package publish

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gewnthar/surveyetl/config"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads rendered charts to a bucket.
type S3Publisher struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Publisher builds an S3 client for cfg. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain applies.
func NewS3Publisher(ctx context.Context, cfg config.PublishConfig) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish bucket is not configured")
	}

	optFns := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newS3Publisher(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
}

func newS3Publisher(client objectPutter, bucket, prefix string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key is the object key a chart file is stored under.
func (p *S3Publisher) Key(filename string) string {
	if p.prefix == "" {
		return filename
	}
	return path.Join(p.prefix, filename)
}

// PublishDir uploads every *.html file in dir and returns the keys written.
// Existing objects with the same key are overwritten.
func (p *S3Publisher) PublishDir(ctx context.Context, dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list charts in %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no charts found in %s, run the charts task first", dir)
	}
	sort.Strings(files)

	var keys []string
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return keys, fmt.Errorf("failed to read chart %s: %w", file, err)
		}
		key := p.Key(filepath.Base(file))

		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("text/html; charset=utf-8"),
		})
		if err != nil {
			return keys, fmt.Errorf("failed to upload %s to S3: %w", file, err)
		}
		log.Printf("Publish: Uploaded %s to s3://%s/%s\n", file, p.bucket, key)
		keys = append(keys, key)
	}
	return keys, nil
}
