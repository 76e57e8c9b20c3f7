package s3

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/minio/blake2b-simd"
	"github.com/pkg/errors"

	"github.com/jrhy/iavl/kv"
)

// S3Interface is the subset of the S3 client the store uses.
type S3Interface interface {
	DeleteObjectWithContext(ctx aws.Context, input *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error)
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	ListObjectsWithContext(ctx aws.Context, input *s3.ListObjectsInput, opts ...request.Option) (*s3.ListObjectsOutput, error)
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// DefaultStoredCacheSize is how many recently written entries a Store
// remembers in order to skip rewriting them.
const DefaultStoredCacheSize = 1000

// Store implements kv.Store with one object per key. Object names are
// Prefix followed by the hex-encoded key, which S3 lists in key order.
type Store struct {
	s3         S3Interface
	BucketName string
	Prefix     string

	mu     sync.Mutex
	stored *simplelru.LRU // object name -> digest of last value written or read
}

var _ kv.Store = (*Store)(nil)

// NewStore returns a Store that keeps entries as objects in the given
// bucket, with names starting with prefix.
func NewStore(client S3Interface, bucketName, prefix string) *Store {
	stored, err := simplelru.NewLRU(DefaultStoredCacheSize, nil)
	if err != nil {
		panic(err)
	}
	return &Store{s3: client, BucketName: bucketName, Prefix: prefix, stored: stored}
}

func (p *Store) objectName(key []byte) string {
	return p.Prefix + hex.EncodeToString(key)
}

func digest(value []byte) [32]byte {
	return blake2b.Sum256(value)
}

func (p *Store) remember(name string, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored.Add(name, digest(value))
}

func (p *Store) forget(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored.Remove(name)
}

func (p *Store) alreadyStored(name string, value []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.stored.Get(name)
	return ok && d.([32]byte) == digest(value)
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey
	}
	return false
}

// Get loads the object for key, returning nil if there is none.
func (p *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	return p.load(ctx, p.objectName(key))
}

func (p *Store) load(ctx context.Context, name string) ([]byte, error) {
	output, err := p.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &p.BucketName,
		Key:    aws.String(name),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", name)
	}
	defer output.Body.Close()
	b, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	if b == nil {
		b = []byte{}
	}
	p.remember(name, b)
	return b, nil
}

// Put stores value under key, unless this Store recently wrote or read
// the same value there.
func (p *Store) Put(ctx context.Context, key, value []byte) error {
	name := p.objectName(key)
	if p.alreadyStored(name, value) {
		return nil
	}
	_, err := p.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: &p.BucketName,
		Key:    aws.String(name),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return errors.Wrapf(err, "put %s", name)
	}
	p.remember(name, value)
	return nil
}

func (p *Store) Delete(ctx context.Context, key []byte) error {
	name := p.objectName(key)
	p.forget(name)
	_, err := p.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: &p.BucketName,
		Key:    aws.String(name),
	})
	if err != nil && !isNotFound(err) {
		return errors.Wrapf(err, "delete %s", name)
	}
	return nil
}

func (p *Store) Iterator(ctx context.Context) kv.Iterator {
	return p.PrefixIterator(ctx, nil)
}

// PrefixIterator lists matching objects a page at a time, loading each
// value as the iterator reaches it.
func (p *Store) PrefixIterator(ctx context.Context, prefix []byte) kv.Iterator {
	return &iterator{
		ctx:    ctx,
		store:  p,
		prefix: p.objectName(prefix),
	}
}

type iterator struct {
	ctx    context.Context
	store  *Store
	prefix string
	marker *string
	page   []string
	done   bool

	key, value []byte
	err        error
}

func (it *iterator) fetch() error {
	output, err := it.store.s3.ListObjectsWithContext(it.ctx, &s3.ListObjectsInput{
		Bucket: &it.store.BucketName,
		Prefix: aws.String(it.prefix),
		Marker: it.marker,
	})
	if err != nil {
		return errors.Wrapf(err, "list %s", it.prefix)
	}
	for _, object := range output.Contents {
		it.page = append(it.page, aws.StringValue(object.Key))
	}
	if len(it.page) > 0 && aws.BoolValue(output.IsTruncated) {
		it.marker = aws.String(it.page[len(it.page)-1])
	} else {
		it.done = true
	}
	return nil
}

func (it *iterator) Next() bool {
	for it.err == nil {
		if len(it.page) == 0 {
			if it.done {
				break
			}
			if it.err = it.fetch(); it.err != nil {
				break
			}
			continue
		}
		name := it.page[0]
		it.page = it.page[1:]
		key, err := hex.DecodeString(strings.TrimPrefix(name, it.store.Prefix))
		if err != nil {
			continue
		}
		value, err := it.store.load(it.ctx, name)
		if err != nil {
			it.err = err
			break
		}
		if value != nil {
			it.key, it.value = key, value
			return true
		}
	}
	it.key, it.value = nil, nil
	return false
}

func (it *iterator) Key() []byte   { return it.key }
func (it *iterator) Value() []byte { return it.value }
func (it *iterator) Err() error    { return it.err }

func (it *iterator) Close() error {
	it.page, it.done = nil, true
	return nil
}
