package store

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/lk2023060901/parallax-connect/internal/chat/transcript"
	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/lk2023060901/parallax-connect/internal/pkg/minio"
	"github.com/lk2023060901/parallax-connect/internal/pkg/workerpool"
)

const sessionPrefix = "sessions/"

// ObjectStore keeps each session as sessions/<id>.json in a bucket
type ObjectStore struct {
	client *minio.Client
	bucket string
	pool   *workerpool.Pool
}

// NewObjectStore creates the bucket when missing and returns a store on it.
// List downloads objects on pool; a nil pool downloads them one by one.
func NewObjectStore(ctx context.Context, client *minio.Client, bucket string, pool *workerpool.Pool) (*ObjectStore, error) {
	if err := client.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	return &ObjectStore{client: client, bucket: bucket, pool: pool}, nil
}

func objectName(id string) string {
	return sessionPrefix + id + ".json"
}

func (o *ObjectStore) Save(ctx context.Context, s types.ChatSession) error {
	if err := checkID(s.ID); err != nil {
		return err
	}
	if strings.ContainsAny(s.ID, "/\\") {
		return fmt.Errorf("store: session id %q must not contain path separators", s.ID)
	}
	data, err := transcript.Marshal(s)
	if err != nil {
		return err
	}
	return o.client.PutBytes(ctx, o.bucket, objectName(s.ID), data, "application/json")
}

func (o *ObjectStore) Get(ctx context.Context, id string) (types.ChatSession, error) {
	if err := checkID(id); err != nil {
		return types.ChatSession{}, err
	}
	data, err := o.client.GetBytes(ctx, o.bucket, objectName(id))
	if minio.IsNotFound(err) {
		return types.ChatSession{}, ErrNotFound
	}
	if err != nil {
		return types.ChatSession{}, err
	}
	return transcript.Unmarshal(data)
}

func (o *ObjectStore) List(ctx context.Context) ([]types.ChatSession, error) {
	objects, err := o.client.ListObjects(ctx, o.bucket, sessionPrefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if path.Ext(obj.Key) == ".json" {
			keys = append(keys, obj.Key)
		}
	}

	// a slot stays nil when the object vanished between list and get
	loaded := make([]*types.ChatSession, len(keys))
	fetch := func(ctx context.Context, i int) error {
		data, err := o.client.GetBytes(ctx, o.bucket, keys[i])
		if minio.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		s, err := transcript.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("store: %s: %w", keys[i], err)
		}
		loaded[i] = &s
		return nil
	}

	if o.pool != nil {
		err = o.pool.Map(ctx, len(keys), fetch)
	} else {
		for i := range keys {
			if err = fetch(ctx, i); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]types.ChatSession, 0, len(loaded))
	for _, s := range loaded {
		if s != nil {
			out = append(out, *s)
		}
	}
	Sort(out)
	return out, nil
}

// Delete removes the session object. S3 deletes are idempotent, so the
// object is looked up first to report ErrNotFound.
func (o *ObjectStore) Delete(ctx context.Context, id string) error {
	if _, err := o.Get(ctx, id); err != nil {
		return err
	}
	return o.client.RemoveObject(ctx, o.bucket, objectName(id))
}
