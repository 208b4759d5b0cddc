// Package artifact mirrors generated configurations and datasets to a
// blob bucket (local directory, S3, GCS, Azure or in-memory).
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/randalmurphal/appforge/internal/flowstate"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// BlobExporter writes artifacts under
//
//	<prefix><flow>/v<version>/config.json
//	<prefix><flow>/data/<name>.json
type BlobExporter struct {
	bucket *blob.Bucket
	prefix string
}

// NewBlobExporter opens the bucket at bucketURL, e.g. "file:///var/appforge",
// "s3://bucket?region=us-east-1" or "mem://".
func NewBlobExporter(ctx context.Context, bucketURL, prefix string) (*BlobExporter, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return &BlobExporter{bucket: bucket, prefix: prefix}, nil
}

// ExportConfig writes one configuration version.
func (e *BlobExporter) ExportConfig(ctx context.Context, flowID string, version int, doc flowstate.Document) error {
	return e.write(ctx, e.configKey(flowID, version), doc)
}

// ExportDatasets writes every dataset, overwriting earlier exports.
func (e *BlobExporter) ExportDatasets(ctx context.Context, flowID string, data flowstate.Datasets) error {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := e.write(ctx, e.datasetKey(flowID, name), data[name]); err != nil {
			return err
		}
	}
	return nil
}

// Config reads back an exported configuration version.
func (e *BlobExporter) Config(ctx context.Context, flowID string, version int) (flowstate.Document, error) {
	var doc flowstate.Document
	if err := e.read(ctx, e.configKey(flowID, version), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Versions lists the exported configuration versions of a flow in
// ascending order.
func (e *BlobExporter) Versions(ctx context.Context, flowID string) ([]int, error) {
	prefix := e.prefix + flowID + "/v"
	iter := e.bucket.List(&blob.ListOptions{Prefix: prefix})

	var versions []int
	for {
		obj, err := iter.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		rest := strings.TrimPrefix(obj.Key, prefix)
		v, ok := strings.CutSuffix(rest, "/config.json")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			versions = append(versions, n)
		}
	}
	sort.Ints(versions)
	return versions, nil
}

// Close closes the bucket.
func (e *BlobExporter) Close() error {
	return e.bucket.Close()
}

func (e *BlobExporter) configKey(flowID string, version int) string {
	return fmt.Sprintf("%s%s/v%d/config.json", e.prefix, flowID, version)
}

func (e *BlobExporter) datasetKey(flowID, name string) string {
	return fmt.Sprintf("%s%s/data/%s.json", e.prefix, flowID, name)
}

func (e *BlobExporter) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := e.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (e *BlobExporter) read(ctx context.Context, key string, out any) error {
	data, err := e.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
