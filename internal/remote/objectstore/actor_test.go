package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
)

// memBucket is an in-memory Bucket.
type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	listErr error
	// steal, when set, is created by "another writer" right before the next Create.
	steal string
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string][]byte)}
}

func (b *memBucket) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *memBucket) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *memBucket) Create(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.steal != "" {
		b.objects[b.steal] = []byte(`{"id":1,"name":"theirs","size":1}`)
		b.steal = ""
	}
	if _, ok := b.objects[key]; ok {
		return ErrObjectExists
	}
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *memBucket) Put(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func TestActorAddListRetrieve(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	a := New(bucket, "/team/", logging.Nop())

	files, err := a.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	first, err := a.AddFile(ctx, "report.pdf", models.NewByteCount(204800))
	require.NoError(t, err)
	second, err := a.AddFile(ctx, "data.csv", models.NewByteCount(10))
	require.NoError(t, err)
	assert.Equal(t, models.FileID(1), first.ID)
	assert.Equal(t, models.FileID(2), second.ID)

	_, ok := bucket.objects["team/meta/1.json"]
	assert.True(t, ok, "metadata stored under the prefix")

	files, err = a.ListFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.FileRecord{first, second}, files)

	// Registered metadata has no content until someone puts it.
	got, err := a.GetFileContent(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, a.PutContent(ctx, first.ID, []byte("%PDF")))
	got, err = a.GetFileContent(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "report.pdf", got.Name)
	assert.Equal(t, []byte("%PDF"), got.Bytes)
}

func TestActorIDOrderingIsNumeric(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	a := New(bucket, "", logging.Nop())

	for i := 0; i < 11; i++ {
		_, err := a.AddFile(ctx, "f", models.NewByteCount(1))
		require.NoError(t, err)
	}
	rec, err := a.AddFile(ctx, "twelfth", models.NewByteCount(1))
	require.NoError(t, err)
	assert.Equal(t, models.FileID(12), rec.ID)

	files, err := a.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 12)
	assert.Equal(t, models.FileID(10), files[9].ID)
}

func TestActorReallocatesOnConflict(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	bucket.steal = "meta/1.json"
	a := New(bucket, "", logging.Nop())

	rec, err := a.AddFile(ctx, "mine.txt", models.NewByteCount(3))
	require.NoError(t, err)
	assert.Equal(t, models.FileID(2), rec.ID)
}

func TestActorAbsentAndErrors(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	a := New(bucket, "", logging.Nop())

	got, err := a.GetFileContent(ctx, 42)
	assert.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, a.PutContent(ctx, 42, []byte("x")), models.ErrNotFound)

	_, err = a.AddFile(ctx, " ", models.NewByteCount(1))
	assert.ErrorIs(t, err, models.ErrRemoteRejected)

	bucket.listErr = errors.New("access denied")
	_, err = a.ListFiles(ctx)
	assert.ErrorIs(t, err, models.ErrRemoteRejected)
	assert.Equal(t, "access denied", models.Summary(err))
}

func TestActorSkipsForeignKeys(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	bucket.objects["meta/readme.txt"] = []byte("hi")
	bucket.objects["meta/notes.json"] = []byte("{}")
	a := New(bucket, "", logging.Nop())

	files, err := a.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDialer(t *testing.T) {
	bucket := newMemBucket()
	dial := Dialer(func(context.Context) (Bucket, error) { return bucket, nil }, "p", logging.Nop())
	actor, err := dial(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, actor)

	bucket.listErr = errors.New("no such bucket")
	_, err = dial(context.Background())
	assert.Error(t, err)
}

// fakeS3 implements S3API over a map.
type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if aws.ToString(in.IfNoneMatch) == "*" {
		if _, ok := f.objects[key]; ok {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
		}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3BucketThroughActor(t *testing.T) {
	ctx := context.Background()
	bucket := NewS3Bucket(&fakeS3{objects: make(map[string][]byte)}, "files")

	_, err := bucket.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, bucket.Create(ctx, "k", []byte("v")))
	assert.ErrorIs(t, bucket.Create(ctx, "k", []byte("v2")), ErrObjectExists)
	require.NoError(t, bucket.Put(ctx, "k", []byte("v3")))
	data, err := bucket.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v3"), data)

	a := New(bucket, "canfiles", logging.Nop())
	rec, err := a.AddFile(ctx, "big.iso", models.NewByteCount(1<<40))
	require.NoError(t, err)
	files, err := a.ListFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.FileRecord{rec}, files)
}
