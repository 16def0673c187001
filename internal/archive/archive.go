// Package archive keeps a copy of every raw API page in S3 so a load can be
// audited or replayed without calling Zoom again.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutAPI is the S3 call the archive needs.
type PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Archive struct {
	api    PutAPI
	bucket string
	prefix string
	logger *slog.Logger

	mu    sync.Mutex
	runID string
	seq   map[string]int
}

// New loads the default AWS configuration chain.
func New(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*Archive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithAPI(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func NewWithAPI(api PutAPI, bucket, prefix string, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
		runID:  "adhoc",
		seq:    map[string]int{},
	}
}

// SetRun starts a new key space for runID.
func (a *Archive) SetRun(runID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runID = runID
	a.seq = map[string]int{}
}

// Put stores one response body. Failures are logged and otherwise ignored.
func (a *Archive) Put(ctx context.Context, op string, body []byte) {
	key := a.nextKey(op)
	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		a.logger.Warn("failed to archive raw page", "op", op, "key", key, "error", err)
	}
}

func (a *Archive) nextKey(op string) string {
	slug := strings.ReplaceAll(strings.ToLower(op), " ", "_")
	a.mu.Lock()
	a.seq[slug]++
	n := a.seq[slug]
	run := a.runID
	a.mu.Unlock()
	return path.Join(a.prefix, run, slug, fmt.Sprintf("%06d.json", n))
}
