package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"golden-seed/config"
	"golden-seed/models"
)

// ObjectStore is the subset of the S3 API used for snapshot archiving.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// NewS3Client creates a client for an S3-compatible endpoint.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.SnapshotS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.SnapshotS3Key, cfg.SnapshotS3Secret, "")),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.SnapshotS3URL)
		o.UsePathStyle = true
	}), nil
}

// SnapshotArchive copies promoted snapshots to a bucket.
type SnapshotArchive struct {
	Client ObjectStore
	Bucket string
	URL    string
}

func NewSnapshotArchive(client ObjectStore, cfg *config.Config) *SnapshotArchive {
	return &SnapshotArchive{Client: client, Bucket: cfg.SnapshotS3Bucket, URL: cfg.SnapshotS3URL}
}

// SnapshotKey is the object key of one archived snapshot.
func SnapshotKey(snap *models.FinalSnapshot) string {
	return fmt.Sprintf("snapshots/%s/%s.json", snap.PromotedAt.UTC().Format("2006-01-02"), snap.SeedID)
}

// ArchiveSnapshot uploads the snapshot as JSON and returns its link.
func (a *SnapshotArchive) ArchiveSnapshot(ctx context.Context, snap *models.FinalSnapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return a.Upload(ctx, SnapshotKey(snap), data, "application/json")
}

// Upload stores data under key and returns its link.
func (a *SnapshotArchive) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.URL, "/"), a.Bucket, key), nil
}

// Rotate keeps the newest keep objects under prefix and deletes the rest.
func (a *SnapshotArchive) Rotate(ctx context.Context, prefix string, keep int) ([]string, error) {
	out, err := a.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Contents) <= keep {
		return nil, nil
	}

	objs := append([]types.Object(nil), out.Contents...)
	sort.Slice(objs, func(i, j int) bool {
		return aws.ToTime(objs[i].LastModified).After(aws.ToTime(objs[j].LastModified))
	})

	var deleted []string
	for _, obj := range objs[keep:] {
		if _, err := a.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(a.Bucket),
			Key:    obj.Key,
		}); err != nil {
			return deleted, err
		}
		deleted = append(deleted, aws.ToString(obj.Key))
	}
	return deleted, nil
}
