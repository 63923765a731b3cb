// pkg/save/storage.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package save

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"
)

// StorageBackend is where checkpoints are kept.
type StorageBackend interface {
	OpenRead(path string) (io.ReadCloser, error)
	Store(path string, r io.Reader) (int64, error)
	Close()
}

// MakeStorageBackend returns a backend for the given location along with
// the path of the object within it. "gs://bucket/object" selects Google
// Cloud Storage and "s3://bucket/key" selects S3; anything else is a local
// file path.
func MakeStorageBackend(ctx context.Context, uri string) (StorageBackend, string, error) {
	for scheme, mk := range map[string]func(context.Context, string) (StorageBackend, error){
		"gs://": MakeGCSBackend,
		"s3://": MakeS3Backend,
	} {
		rest, ok := strings.CutPrefix(uri, scheme)
		if !ok {
			continue
		}
		bucket, object, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || object == "" {
			return nil, "", fmt.Errorf("%s: expected %sbucket/object", uri, scheme)
		}
		sb, err := mk(ctx, bucket)
		return sb, object, err
	}
	return LocalBackend{}, uri, nil
}

///////////////////////////////////////////////////////////////////////////
// LocalBackend

// LocalBackend stores objects as files; relative paths are resolved
// against Root, or the working directory if Root is empty.
type LocalBackend struct {
	Root string
}

func (l LocalBackend) resolve(path string) string {
	if l.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.Root, path)
}

func (l LocalBackend) OpenRead(path string) (io.ReadCloser, error) {
	return os.Open(l.resolve(path))
}

// Store writes to a temporary file that is renamed into place once
// complete so that readers never see a partial checkpoint.
func (l LocalBackend) Store(path string, r io.Reader) (int64, error) {
	path = l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return n, err
	}
	return n, os.Rename(f.Name(), path)
}

func (l LocalBackend) Close() {}

///////////////////////////////////////////////////////////////////////////
// GCSBackend

type GCSBackend struct {
	ctx    context.Context
	client *storage.Client
	bucket *storage.BucketHandle
}

// MakeGCSBackend connects to the named bucket using the JSON credentials
// in the TOWERSIM_GCS_CREDENTIALS environment variable.
func MakeGCSBackend(ctx context.Context, bucketName string) (StorageBackend, error) {
	credsJSON := os.Getenv("TOWERSIM_GCS_CREDENTIALS")
	if credsJSON == "" {
		return nil, fmt.Errorf("TOWERSIM_GCS_CREDENTIALS: %w", ErrMissingCredentials)
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, err
	}

	return &GCSBackend{
		ctx:    ctx,
		client: client,
		bucket: client.Bucket(bucketName),
	}, nil
}

func (g GCSBackend) OpenRead(path string) (io.ReadCloser, error) {
	return g.bucket.Object(path).NewReader(g.ctx)
}

func (g GCSBackend) Store(path string, r io.Reader) (int64, error) {
	objw := g.bucket.Object(path).NewWriter(g.ctx)
	objw.ContentType = "application/zstd"
	n, err := io.Copy(objw, r)
	if err != nil {
		objw.Close()
		return n, err
	}
	return n, objw.Close()
}

func (g GCSBackend) Close() { g.client.Close() }

///////////////////////////////////////////////////////////////////////////
// S3Backend

type S3Backend struct {
	ctx    context.Context
	client *s3.Client
	bucket string
}

// MakeS3Backend connects to the named bucket using the static keys in
// TOWERSIM_S3_ACCESS_KEY_ID and TOWERSIM_S3_SECRET_ACCESS_KEY. The region
// comes from TOWERSIM_S3_REGION; TOWERSIM_S3_ENDPOINT may name an
// S3-compatible service to use instead of AWS.
func MakeS3Backend(ctx context.Context, bucket string) (StorageBackend, error) {
	id, secret := os.Getenv("TOWERSIM_S3_ACCESS_KEY_ID"), os.Getenv("TOWERSIM_S3_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return nil, fmt.Errorf("TOWERSIM_S3_ACCESS_KEY_ID/TOWERSIM_S3_SECRET_ACCESS_KEY: %w", ErrMissingCredentials)
	}
	region := os.Getenv("TOWERSIM_S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, "")))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := os.Getenv("TOWERSIM_S3_ENDPOINT"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
			o.UsePathStyle = true
		}
	})

	return &S3Backend{ctx: ctx, client: client, bucket: bucket}, nil
}

func (b *S3Backend) OpenRead(path string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(b.ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Store buffers r in memory since uploads need a known length.
func (b *S3Backend) Store(path string, r io.Reader) (int64, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if _, err := b.client.PutObject(b.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(buf),
		ContentLength: aws.Int64(int64(len(buf))),
		ContentType:   aws.String("application/zstd"),
	}); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

func (b *S3Backend) Close() {}
