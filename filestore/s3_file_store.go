package filestore

import (
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
)

const (
	DevS3MediaBucket  = "bouldering-media-dev"
	ProdS3MediaBucket = "bouldering-media-prod"
)

type S3FileStore struct {
	bucket    string
	uploader  *s3manager.Uploader
	svc       *s3.S3
	urlPrefix string
}

func NewS3FileStore(bucket string) (*S3FileStore, error) {
	// AWS client session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
	})
	if err != nil {
		return nil, err
	}

	return &S3FileStore{
		bucket:    bucket,
		uploader:  s3manager.NewUploader(sess),
		svc:       s3.New(sess),
		urlPrefix: os.Getenv("MEDIA_CDN_PREFIX"),
	}, nil
}

// Store uploads one media body under a fresh key. Keys are random, a retried
// upload never clobbers an earlier one.
func (s *S3FileStore) Store(body io.Reader, extWithDot string) (string, error) {
	key := uuid.New().String() + extWithDot
	_, err := s.uploader.Upload(&s3manager.UploadInput{
		ACL:    aws.String("public-read"),
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *S3FileStore) GetUrlFromKey(key string) string {
	return s.urlPrefix + key
}

func (s *S3FileStore) CleanUp() {}
