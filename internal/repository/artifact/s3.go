package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Repository serves artifacts stored under a bucket prefix on S3-compatible storage.
type S3Repository struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Repository connects to the storage described by opts.
func NewS3Repository(bucket, prefix string, opts S3Options) (*S3Repository, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 URI without bucket", ErrUnsupportedScheme)
	}

	var creds *credentials.Credentials
	if opts.AccessKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	return NewS3RepositoryWithClient(client, bucket, prefix), nil
}

// NewS3RepositoryWithClient wraps an existing client.
func NewS3RepositoryWithClient(client *minio.Client, bucket, prefix string) *S3Repository {
	return &S3Repository{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Download fetches every object under prefix/artifactPath into dst/artifactPath.
func (r *S3Repository) Download(ctx context.Context, artifactPath, dst string) (string, error) {
	rel, err := cleanArtifactPath(artifactPath)
	if err != nil {
		return "", err
	}

	key := r.key(rel)
	target := filepath.Join(dst, filepath.FromSlash(rel))

	// A single object under the exact key is a file artifact.
	if _, err = r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{}); err == nil {
		if err = r.client.FGetObject(ctx, r.bucket, key, target, minio.GetObjectOptions{}); err != nil {
			return "", fmt.Errorf("get s3://%s/%s: %w", r.bucket, key, err)
		}

		return target, nil
	}

	listPrefix := key
	if listPrefix != "" {
		listPrefix += "/"
	}

	found := false

	for object := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return "", fmt.Errorf("list s3://%s/%s: %w", r.bucket, listPrefix, object.Err)
		}

		if strings.HasSuffix(object.Key, "/") {
			continue
		}

		local := filepath.Join(target, filepath.FromSlash(strings.TrimPrefix(object.Key, listPrefix)))
		if err = r.client.FGetObject(ctx, r.bucket, object.Key, local, minio.GetObjectOptions{}); err != nil {
			return "", fmt.Errorf("get s3://%s/%s: %w", r.bucket, object.Key, err)
		}

		found = true
	}

	if !found {
		return "", fmt.Errorf("s3://%s/%s: %w", r.bucket, key, ErrNotFound)
	}

	return target, nil
}

// Upload puts every file of srcDir under prefix/artifactPath.
func (r *S3Repository) Upload(ctx context.Context, srcDir, artifactPath string) error {
	rel, err := cleanArtifactPath(artifactPath)
	if err != nil {
		return err
	}

	return filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !d.Type().IsRegular() {
			return nil
		}

		fileRel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}

		key := r.key(path.Join(rel, filepath.ToSlash(fileRel)))
		if _, err = r.client.FPutObject(ctx, r.bucket, key, p, minio.PutObjectOptions{}); err != nil {
			return fmt.Errorf("put s3://%s/%s: %w", r.bucket, key, err)
		}

		return nil
	})
}

func (r *S3Repository) key(rel string) string {
	switch {
	case r.prefix == "":
		return rel
	case rel == "":
		return r.prefix
	default:
		return r.prefix + "/" + rel
	}
}
