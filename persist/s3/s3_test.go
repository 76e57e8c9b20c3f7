package s3_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrhy/iavl/kv/kvtest"
	s3Store "github.com/jrhy/iavl/persist/s3"
	"github.com/jrhy/iavl/persist/s3test"
)

var ctx = context.Background()

func TestHappyCase(t *testing.T) {
	t.Parallel()
	c, bucketName, closer := s3test.Client()
	defer closer()

	p := s3Store.NewStore(c, bucketName, "state/")
	err := p.Put(ctx, []byte("foofoo"), []byte("here is some stuff"))
	require.NoError(t, err)
	b, err := p.Get(ctx, []byte("foofoo"))
	require.NoError(t, err)
	assert.Equal(t, []byte("here is some stuff"), b)

	out, err := c.HeadObject(&s3.HeadObjectInput{
		Bucket: &bucketName,
		Key:    aws.String("state/666f6f666f6f"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(18), aws.Int64Value(out.ContentLength))
}

type countingClient struct {
	s3Store.S3Interface
	puts int
}

func (c *countingClient) PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	c.puts++
	return c.S3Interface.PutObjectWithContext(ctx, input, opts...)
}

func TestSkipsRewrites(t *testing.T) {
	t.Parallel()
	c, bucketName, closer := s3test.Client()
	defer closer()

	client := &countingClient{S3Interface: c}
	p := s3Store.NewStore(client, bucketName, "")
	require.NoError(t, p.Put(ctx, []byte("k"), []byte("v")))
	require.NoError(t, p.Put(ctx, []byte("k"), []byte("v")))
	assert.Equal(t, 1, client.puts)
	require.NoError(t, p.Put(ctx, []byte("k"), []byte("w")))
	assert.Equal(t, 2, client.puts)

	require.NoError(t, p.Delete(ctx, []byte("k")))
	require.NoError(t, p.Put(ctx, []byte("k"), []byte("w")))
	assert.Equal(t, 3, client.puts)
}

func TestPrefixesShareBucket(t *testing.T) {
	t.Parallel()
	c, bucketName, closer := s3test.Client()
	defer closer()

	a := s3Store.NewStore(c, bucketName, "a/")
	b := s3Store.NewStore(c, bucketName, "b/")
	require.NoError(t, a.Put(ctx, []byte("k"), []byte("1")))
	require.NoError(t, b.Put(ctx, []byte("k"), []byte("2")))
	assert.Equal(t, []kvtest.Entry{{Key: "k", Value: "1"}}, kvtest.Collect(t, a.Iterator(ctx)))
	assert.Equal(t, []kvtest.Entry{{Key: "k", Value: "2"}}, kvtest.Collect(t, b.Iterator(ctx)))
}

func TestPagedIteration(t *testing.T) {
	if testing.Short() {
		t.Skip("writes more than a page of objects")
	}
	t.Parallel()
	c, bucketName, closer := s3test.Client()
	defer closer()

	p := s3Store.NewStore(c, bucketName, "")
	for i := 0; i < 1100; i++ {
		require.NoError(t, p.Put(ctx, []byte(fmt.Sprintf("%04d", i)), []byte("v")))
	}
	entries := kvtest.Collect(t, p.Iterator(ctx))
	require.Len(t, entries, 1100)
	assert.Equal(t, "1099", entries[1099].Key)
}

func TestConformance(t *testing.T) {
	t.Parallel()
	c, bucketName, closer := s3test.Client()
	defer closer()
	kvtest.TestStore(t, s3Store.NewStore(c, bucketName, ""))
}

func TestTree(t *testing.T) {
	t.Parallel()
	c, bucketName, closer := s3test.Client()
	defer closer()
	kvtest.TestTree(t, s3Store.NewStore(c, bucketName, "tree/"))
}
