package objstore

import (
	"context"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/trezcool/mitihani/core"
	"github.com/trezcool/mitihani/core/exam"
)

type minioStore struct {
	client *minio.Client
	bucket string
	conf   *core.Config
}

var _ exam.FileStore = (*minioStore)(nil) // interface compliance check

func NewMinioStore(conf *core.Config) (*minioStore, error) {
	client, err := minio.New(conf.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.Storage.AccessKey, conf.Storage.SecretKey, ""),
		Secure: conf.Storage.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to object storage")
	}
	store := &minioStore{
		client: client,
		bucket: conf.Storage.Bucket,
		conf:   conf,
	}
	return store, nil
}

// EnsureBucket creates the configured bucket if it does not exist yet.
func (store *minioStore) EnsureBucket(ctx context.Context) error {
	exists, err := store.client.BucketExists(ctx, store.bucket)
	if err != nil {
		return errors.Wrapf(err, "checking bucket %s", store.bucket)
	}
	if !exists {
		if err = store.client.MakeBucket(ctx, store.bucket, minio.MakeBucketOptions{}); err != nil {
			return errors.Wrapf(err, "creating bucket %s", store.bucket)
		}
	}
	return nil
}

func (store *minioStore) Save(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := store.client.PutObject(ctx, store.bucket, path, r, size, opts); err != nil {
		return errors.Wrapf(err, "saving object %s", path)
	}
	return nil
}

func (store *minioStore) PresignedURL(ctx context.Context, path, filename string) (string, error) {
	params := make(url.Values)
	if filename != "" {
		params.Set("response-content-disposition", `attachment; filename="`+filename+`"`)
	}
	u, err := store.client.PresignedGetObject(ctx, store.bucket, path, store.conf.Storage.DownloadURLTTL, params)
	if err != nil {
		return "", errors.Wrapf(err, "presigning object %s", path)
	}
	return u.String(), nil
}

func (store *minioStore) Delete(ctx context.Context, path string) error {
	if err := store.client.RemoveObject(ctx, store.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "removing object %s", path)
	}
	return nil
}
