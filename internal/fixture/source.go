// Package fixture opens CSV fixture files, local or in S3, plain or compressed,
// and reads them as a lazy stream of rows.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnsupportedSource is returned for fixture locations no opener understands.
var ErrUnsupportedSource = errors.New("unsupported fixture source")

// S3Options configures access to s3:// fixtures. Empty fields fall back to the
// AWS SDK defaults (environment, shared config).
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

type Options struct {
	S3 S3Options
}

// Open returns the decompressed content of a fixture. Compression is chosen by
// extension: .gz, .zst and .lz4.
func Open(ctx context.Context, path string, opts Options) (io.ReadCloser, error) {
	var raw io.ReadCloser
	var err error
	if strings.HasPrefix(path, "s3://") {
		raw, err = openS3(ctx, path, opts.S3)
	} else {
		raw, err = os.Open(path)
	}
	if err != nil {
		return nil, err
	}

	rc, err := decompress(path, raw)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return rc, nil
}

// Compression names the codec for a fixture path: gzip, zstd, lz4 or none.
func Compression(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return "gzip"
	case strings.HasSuffix(lower, ".zst"):
		return "zstd"
	case strings.HasSuffix(lower, ".lz4"):
		return "lz4"
	default:
		return "none"
	}
}

func decompress(path string, raw io.ReadCloser) (io.ReadCloser, error) {
	switch Compression(path) {
	case "gzip":
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip fixture %s: %w", path, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, raw}}, nil
	case "zstd":
		dec, err := zstd.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd fixture %s: %w", path, err)
		}
		rc := dec.IOReadCloser()
		return &stackedCloser{Reader: rc, closers: []io.Closer{rc, raw}}, nil
	case "lz4":
		return &stackedCloser{Reader: lz4.NewReader(raw), closers: []io.Closer{raw}}, nil
	default:
		return raw, nil
	}
}

// stackedCloser closes a decoder and then the stream beneath it.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SplitS3Path splits s3://bucket/key/path.csv into bucket and key.
func SplitS3Path(path string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(path, "s3://")
	idx := strings.IndexByte(rest, '/')
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", fmt.Errorf("%w: malformed s3 location %q", ErrUnsupportedSource, path)
	}
	return rest[:idx], rest[idx+1:], nil
}

func openS3(ctx context.Context, path string, opts S3Options) (io.ReadCloser, error) {
	bucket, key, err := SplitS3Path(path)
	if err != nil {
		return nil, err
	}

	cfg := &aws.Config{S3ForcePathStyle: aws.Bool(true)}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	if opts.Region != "" {
		cfg.Region = aws.String(opts.Region)
	}
	if opts.AccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	out, err := s3.New(sess).GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	return out.Body, nil
}
