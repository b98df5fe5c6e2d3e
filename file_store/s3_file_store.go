package file_store

import (
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sparklabs/spark-backend/utils/log"
)

// S3MediaStore stores media objects in one S3 bucket and serves them through
// a public URL prefix, typically a CDN distribution in front of the bucket.
type S3MediaStore struct {
	bucket    string
	urlPrefix string
	uploader  *s3manager.Uploader
	svc       *s3.S3
}

// NewS3MediaStore reads S3_MEDIA_BUCKET, S3_MEDIA_URL_PREFIX and AWS_REGION
// and opens a shared AWS session.
func NewS3MediaStore() (*S3MediaStore, error) {
	bucket := os.Getenv("S3_MEDIA_BUCKET")
	urlPrefix := os.Getenv("S3_MEDIA_URL_PREFIX")
	if bucket == "" || urlPrefix == "" {
		return nil, errors.New("S3_MEDIA_BUCKET and S3_MEDIA_URL_PREFIX must be set")
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-west-1"
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "open aws session")
	}

	return &S3MediaStore{
		bucket:    bucket,
		urlPrefix: urlPrefix,
		uploader:  s3manager.NewUploader(sess),
		svc:       s3.New(sess),
	}, nil
}

// Store uploads the body under a fresh uuid key. Keys are never derived from
// user input, so collisions and overwrites cannot happen.
func (s *S3MediaStore) Store(body io.Reader, ext string) (string, error) {
	key := uuid.New().String() + ext
	_, err := s.uploader.Upload(&s3manager.UploadInput{
		ACL:    aws.String("public-read"),
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", errors.Wrap(err, "upload to s3")
	}
	return s.urlPrefix + key, nil
}

// Delete removes the object behind a URL previously returned by Store. URLs
// outside our prefix are ignored, media rows can reference external content.
func (s *S3MediaStore) Delete(url string) bool {
	key, ok := strings.CutPrefix(url, s.urlPrefix)
	if !ok || key == "" {
		return false
	}
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Log.WithField("key", key).Warn("delete media object: " + err.Error())
		return false
	}
	return true
}
