package blobstore

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const uploadChunkSize = 255 * 1024

// GridFSStore keeps blobs in a GridFS bucket. Retrieval URLs are served by the
// HTTP edge under baseURL + "/files/<key>".
type GridFSStore struct {
	bucket  *gridfs.Bucket
	baseURL string
}

func NewGridFSStore(db *mongo.Database, baseURL string) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		return nil, errors.Wrap(err, "open gridfs bucket")
	}
	return &GridFSStore{bucket: bucket, baseURL: baseURL}, nil
}

func (s *GridFSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, onProgress ProgressFunc) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	up, err := s.bucket.OpenUploadStream(key, opts)
	if err != nil {
		return "", errors.Wrapf(err, "open upload stream %s", key)
	}

	buf := make([]byte, uploadChunkSize)
	var sent int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := up.Write(buf[:n]); werr != nil {
				_ = up.Abort()
				return "", errors.Wrapf(werr, "write chunk %s", key)
			}
			sent += int64(n)
			if onProgress != nil && size > 0 {
				onProgress(float64(sent) / float64(size) * 100)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = up.Abort()
			return "", errors.Wrapf(rerr, "read source %s", key)
		}
	}
	if err := up.Close(); err != nil {
		return "", errors.Wrapf(err, "close upload stream %s", key)
	}
	return s.url(key), nil
}

func (s *GridFSStore) URL(ctx context.Context, key string) (string, error) {
	cur, err := s.bucket.Find(bson.M{"filename": key})
	if err != nil {
		return "", errors.Wrapf(err, "find blob %s", key)
	}
	defer func() { _ = cur.Close(ctx) }()
	if !cur.Next(ctx) {
		return "", errors.Errorf("blob %s not found", key)
	}
	return s.url(key), nil
}

func (s *GridFSStore) Delete(ctx context.Context, key string) error {
	cur, err := s.bucket.Find(bson.M{"filename": key})
	if err != nil {
		return errors.Wrapf(err, "find blob %s", key)
	}
	defer func() { _ = cur.Close(ctx) }()
	for cur.Next(ctx) {
		var file struct {
			ID interface{} `bson:"_id"`
		}
		if err := cur.Decode(&file); err != nil {
			return errors.Wrap(err, "decode file record")
		}
		if err := s.bucket.Delete(file.ID); err != nil {
			return errors.Wrapf(err, "delete blob %s", key)
		}
	}
	return nil
}

// Download streams the blob to w; the HTTP edge uses it to serve /files/<key>.
func (s *GridFSStore) Download(ctx context.Context, key string, w io.Writer) error {
	_, err := s.bucket.DownloadToStreamByName(key, w)
	return errors.Wrapf(err, "download blob %s", key)
}

func (s *GridFSStore) url(key string) string {
	return s.baseURL + "/files/" + key
}
