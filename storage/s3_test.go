package storage

import (
	"bytes"
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

	"wikicite/config"
)

// fakeObjects hält Objekte im Speicher und liefert Listen seitenweise zu je zwei Einträgen.
type fakeObjects struct {
	objects map[string][]byte
	keys    []string
	deleted []string
}

func (f *fakeObjects) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	start := 0
	if in.ContinuationToken != nil {
		for i, k := range f.keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	out := &s3.ListObjectsV2Output{}
	var matched []string
	for _, k := range f.keys[start:] {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			matched = append(matched, k)
		}
	}
	for i, k := range matched {
		if i == 2 {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(k)
			break
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		})
	}
	return out, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.objects[aws.ToString(in.Key)]))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = data
	f.keys = append(f.keys, key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestParseS3URI(t *testing.T) {
	bucket, prefix, ok := ParseS3URI("s3://dumps/enwiki/2024")
	require.True(t, ok)
	assert.Equal(t, "dumps", bucket)
	assert.Equal(t, "enwiki/2024", prefix)

	bucket, prefix, ok = ParseS3URI("s3://dumps")
	require.True(t, ok)
	assert.Equal(t, "dumps", bucket)
	assert.Empty(t, prefix)

	_, _, ok = ParseS3URI("./sources")
	assert.False(t, ok)
	_, _, ok = ParseS3URI("s3://")
	assert.False(t, ok)
}

func TestObjectHelpers(t *testing.T) {
	ctx := context.Background()
	fake := &fakeObjects{objects: map[string][]byte{}}
	cfg := &config.Config{S3URL: "https://s3.example"}

	for _, key := range []string{"enwiki/a.xml", "enwiki/b.xml", "enwiki/c.xml", "other/d.xml"} {
		link, err := UploadFile(ctx, fake, cfg, "dumps", key, strings.NewReader("<mediawiki/>"))
		require.NoError(t, err)
		assert.Equal(t, "https://s3.example/dumps/"+key, link)
	}

	objects, err := ListObjects(ctx, fake, "dumps", "enwiki/")
	require.NoError(t, err)
	require.Len(t, objects, 3)
	assert.Equal(t, "enwiki/c.xml", objects[2].Key)
	assert.Equal(t, int64(len("<mediawiki/>")), objects[0].Size)

	body, err := OpenObject(ctx, fake, "dumps", "enwiki/a.xml")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "<mediawiki/>", string(data))

	require.NoError(t, DeleteObject(ctx, fake, "dumps", "enwiki/a.xml"))
	assert.Equal(t, []string{"enwiki/a.xml"}, fake.deleted)
}
