package minio

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ObjectInfo describes a listed object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

func checkNames(op, bucketName, objectName string) error {
	if bucketName == "" {
		return WrapError(op, ErrInvalidBucketName, bucketName, objectName)
	}
	if objectName == "" {
		return WrapError(op, ErrInvalidObjectName, bucketName, objectName)
	}
	return nil
}

// PutBytes uploads data as an object
func (c *Client) PutBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	if err := checkNames("PutObject", bucketName, objectName); err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	info, err := c.client.PutObject(ctx, bucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return WrapError("PutObject", err, bucketName, objectName)
	}

	c.logger.Debug("object uploaded",
		zap.String("bucket", bucketName),
		zap.String("object", objectName),
		zap.Int64("size", info.Size),
	)
	return nil
}

// GetBytes downloads an object. A missing object yields an error for which
// IsNotFound is true.
func (c *Client) GetBytes(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	if err := checkNames("GetObject", bucketName, objectName); err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	object, err := c.client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, WrapError("GetObject", err, bucketName, objectName)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, WrapError("GetObject", err, bucketName, objectName)
	}
	return data, nil
}

// RemoveObject removes an object from a bucket
func (c *Client) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	if err := checkNames("RemoveObject", bucketName, objectName); err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return WrapError("RemoveObject", err, bucketName, objectName)
	}
	c.logger.Debug("object removed",
		zap.String("bucket", bucketName),
		zap.String("object", objectName),
	)
	return nil
}

// ListObjects returns every object under prefix
func (c *Client) ListObjects(ctx context.Context, bucketName, prefix string) ([]ObjectInfo, error) {
	if bucketName == "" {
		return nil, WrapError("ListObjects", ErrInvalidBucketName, bucketName, "")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var out []ObjectInfo
	for object := range c.client.ListObjects(ctx, bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, WrapError("ListObjects", object.Err, bucketName, "")
		}
		out = append(out, ObjectInfo{Key: object.Key, Size: object.Size, LastModified: object.LastModified})
	}
	return out, nil
}
