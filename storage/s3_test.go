package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golden-seed/config"
	"golden-seed/models"
)

type memoryBucket struct {
	objects  map[string][]byte
	modified map[string]time.Time
	deleted  []string
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: map[string][]byte{}, modified: map[string]time.Time{}}
}

func (b *memoryBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	b.objects[key] = data
	if _, ok := b.modified[key]; !ok {
		b.modified[key] = time.Now()
	}
	return &s3.PutObjectOutput{}, nil
}

func (b *memoryBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range b.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key), LastModified: aws.Time(b.modified[key])})
		}
	}
	return out, nil
}

func (b *memoryBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(in.Key)
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestArchiveSnapshot(t *testing.T) {
	bucket := newMemoryBucket()
	archive := NewSnapshotArchive(bucket, &config.Config{SnapshotS3Bucket: "golden", SnapshotS3URL: "https://s3.example.org/"})
	snap := &models.FinalSnapshot{ID: "snap-1", SeedID: "seed-1", PromotedAt: time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)}

	link, err := archive.ArchiveSnapshot(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.org/golden/snapshots/2025-04-02/seed-1.json", link)
	assert.Contains(t, string(bucket.objects["snapshots/2025-04-02/seed-1.json"]), `"seed_id":"seed-1"`)
}

func TestRotateKeepsNewest(t *testing.T) {
	bucket := newMemoryBucket()
	archive := NewSnapshotArchive(bucket, &config.Config{SnapshotS3Bucket: "golden"})
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"exports/a.jsonl.gz", "exports/b.jsonl.gz", "exports/c.jsonl.gz"} {
		bucket.objects[key] = []byte("x")
		bucket.modified[key] = base.Add(time.Duration(i) * time.Hour)
	}
	bucket.objects["snapshots/keep.json"] = []byte("x")
	bucket.modified["snapshots/keep.json"] = base

	deleted, err := archive.Rotate(context.Background(), "exports/", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"exports/a.jsonl.gz"}, deleted)
	assert.Contains(t, bucket.objects, "snapshots/keep.json")

	deleted, err = archive.Rotate(context.Background(), "exports/", 5)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}
