package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	platformredis "profreg/internal/platform/redis"
	"profreg/pkg/platform/sentinel"
)

// RedisIndex implements the search index client on RediSearch. Documents live
// as hashes under "<index>:<version id>"; the FT index is created over that
// prefix. All operations are idempotent so a retried lifecycle call converges.
type RedisIndex struct {
	client *platformredis.Client
	index  string
}

// NewRedisIndex builds a client scoped to one index. The index name comes
// from IndexName(kind, environment) at wiring time.
func NewRedisIndex(client *platformredis.Client, index string) *RedisIndex {
	return &RedisIndex{client: client, index: index}
}

// EnsureIndex creates the full-text index if it does not exist yet. Called
// once at startup.
func (r *RedisIndex) EnsureIndex(ctx context.Context) error {
	err := r.client.FTCreate(ctx, r.index,
		&goredis.FTCreateOptions{
			OnHash: true,
			Prefix: []any{r.keyPrefix()},
		},
		&goredis.FieldSchema{FieldName: "name", FieldType: goredis.SearchFieldTypeText},
		&goredis.FieldSchema{FieldName: "summary", FieldType: goredis.SearchFieldTypeText},
		&goredis.FieldSchema{FieldName: "qualifications", FieldType: goredis.SearchFieldTypeText},
		&goredis.FieldSchema{FieldName: "kind", FieldType: goredis.SearchFieldTypeTag},
		&goredis.FieldSchema{FieldName: "slug", FieldType: goredis.SearchFieldTypeTag},
	).Err()
	if err != nil && !strings.Contains(err.Error(), "Index already exists") {
		return fmt.Errorf("create index %s: %w", r.index, err)
	}
	return nil
}

// Index upserts a document keyed by version id.
func (r *RedisIndex) Index(ctx context.Context, id uuid.UUID, doc Document) error {
	err := r.client.HSet(ctx, r.key(id), map[string]any{
		"version_id":     doc.VersionID.String(),
		"entity_id":      doc.EntityID.String(),
		"kind":           doc.Kind,
		"name":           doc.Name,
		"slug":           doc.Slug,
		"summary":        doc.Summary,
		"qualifications": doc.Qualifications,
	}).Err()
	if err != nil {
		return fmt.Errorf("index document %s: %w", id, err)
	}
	return nil
}

// Delete removes a document. Deleting an absent document is not an error.
func (r *RedisIndex) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// BulkDelete removes many documents in one round trip.
func (r *RedisIndex) BulkDelete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.key(id))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("bulk delete %d documents: %w", len(ids), err)
	}
	return nil
}

// DeleteIndex drops the index and its documents. Used by operational tooling
// and integration test teardown, not by the lifecycle service.
func (r *RedisIndex) DeleteIndex(ctx context.Context) error {
	err := r.client.FTDropIndexWithArgs(ctx, r.index,
		&goredis.FTDropIndexOptions{DeleteDocs: true}).Err()
	if err != nil && !strings.Contains(err.Error(), "Unknown Index name") {
		return fmt.Errorf("drop index %s: %w", r.index, err)
	}
	return nil
}

// Search runs a full-text query, returning matching documents for the public
// search surface.
func (r *RedisIndex) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	res, err := r.client.FTSearchWithArgs(ctx, r.index, query,
		&goredis.FTSearchOptions{LimitOffset: 0, Limit: limit}).Result()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.index, errors.Join(sentinel.ErrUnavailable, err))
	}
	docs := make([]Document, 0, len(res.Docs))
	for _, d := range res.Docs {
		doc := Document{
			Kind:           d.Fields["kind"],
			Name:           d.Fields["name"],
			Slug:           d.Fields["slug"],
			Summary:        d.Fields["summary"],
			Qualifications: d.Fields["qualifications"],
		}
		if id, err := uuid.Parse(d.Fields["version_id"]); err == nil {
			doc.VersionID = id
		}
		if id, err := uuid.Parse(d.Fields["entity_id"]); err == nil {
			doc.EntityID = id
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *RedisIndex) keyPrefix() string {
	return r.index + ":"
}

func (r *RedisIndex) key(id uuid.UUID) string {
	return r.keyPrefix() + id.String()
}
