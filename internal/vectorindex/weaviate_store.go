package vectorindex

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateStore implements Index over a Weaviate client, generalizing the
// teacher's single-class Creator/GraphQL usage to per-collection classes
// with a pure nearVector query (no hybrid text search, since evidence
// retrieval always starts from an already-embedded claim or chunk).
type WeaviateStore struct {
	client *weaviate.Client
}

func NewWeaviateStore(client *weaviate.Client) *WeaviateStore {
	return &WeaviateStore{client: client}
}

func (s *WeaviateStore) Upsert(ctx context.Context, collection string, records []Record) error {
	cls := className(collection)

	for _, r := range records {
		props := map[string]interface{}{
			"recordId":          r.RecordID,
			"text":              r.Text,
			"sourceName":        r.SourceName,
			"kind":              r.Kind,
			"credibilityScore":  r.CredibilityScore,
			"credibilityLevel":  r.CredibilityLevel,
			"isVerifiedSource":  r.IsVerifiedSource,
			"url":               r.URL,
			"publishedAt":       r.PublishedAt,
			"embeddingProvider": r.EmbeddingProvider,
		}

		// Weaviate upsert-by-id: delete any existing object sharing this
		// record's ID before recreating it, so upsert replaces rather than
		// duplicates.
		existingID, err := s.findUUIDByRecordID(ctx, cls, r.RecordID)
		if err != nil {
			return fmt.Errorf("vectorindex: lookup %s/%s: %w", collection, r.RecordID, err)
		}
		if existingID != "" {
			if err := s.client.Data().Deleter().
				WithClassName(cls).WithID(existingID).Do(ctx); err != nil {
				return fmt.Errorf("vectorindex: delete stale %s/%s: %w", collection, r.RecordID, err)
			}
		}

		_, err = s.client.Data().Creator().
			WithClassName(cls).
			WithProperties(props).
			WithVector(r.Vector).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("vectorindex: upsert %s/%s: %w", collection, r.RecordID, err)
		}
	}
	return nil
}

func (s *WeaviateStore) findUUIDByRecordID(ctx context.Context, cls, recordID string) (string, error) {
	where := filters.Where().
		WithPath([]string{"recordId"}).
		WithOperator(filters.Equal).
		WithValueString(recordID)

	res, err := s.client.GraphQL().Get().
		WithClassName(cls).
		WithWhere(where).
		WithFields(graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return "", err
	}
	if len(res.Errors) > 0 {
		return "", fmt.Errorf("graphql error: %v", res.Errors)
	}

	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return "", nil
	}
	objs, ok := data[cls].([]interface{})
	if !ok || len(objs) == 0 {
		return "", nil
	}
	props, ok := objs[0].(map[string]interface{})
	if !ok {
		return "", nil
	}
	additional, ok := props["_additional"].(map[string]interface{})
	if !ok {
		return "", nil
	}
	id, _ := additional["id"].(string)
	return id, nil
}

func (s *WeaviateStore) Query(ctx context.Context, collection string, vector []float32, k int, minSimilarity float64) ([]Hit, error) {
	cls := className(collection)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	limit := k
	if limit <= 0 {
		limit = 50
	}

	fields := []graphql.Field{
		{Name: "recordId"}, {Name: "text"}, {Name: "sourceName"}, {Name: "kind"},
		{Name: "credibilityScore"}, {Name: "credibilityLevel"}, {Name: "isVerifiedSource"},
		{Name: "url"}, {Name: "publishedAt"}, {Name: "embeddingProvider"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(cls).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query %s: %w", collection, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("vectorindex: graphql error querying %s: %v", collection, res.Errors)
	}

	hits := parseHits(res.Data, cls)
	return filterAndTruncate(hits, k, minSimilarity), nil
}

func (s *WeaviateStore) Count(ctx context.Context, collection string) (int, error) {
	cls := className(collection)

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(cls).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("vectorindex: count %s: %w", collection, err)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("vectorindex: graphql error counting %s: %v", collection, res.Errors)
	}

	data, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	arr, ok := data[cls].([]interface{})
	if !ok || len(arr) == 0 {
		return 0, nil
	}
	entry, ok := arr[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := entry["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, nil
	}
	return int(count), nil
}

// CollectionProvider samples one stored record's embeddingProvider
// property. Every write under a given provider stamps the same value
// (internal/embedding.Chain.Result.ProviderID), so one sample is enough to
// tell the dominant provider a collection is currently written under.
func (s *WeaviateStore) CollectionProvider(ctx context.Context, collection string) (string, error) {
	cls := className(collection)

	res, err := s.client.GraphQL().Get().
		WithClassName(cls).
		WithLimit(1).
		WithFields(graphql.Field{Name: "embeddingProvider"}).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("vectorindex: collection provider %s: %w", collection, err)
	}
	if len(res.Errors) > 0 {
		return "", fmt.Errorf("vectorindex: graphql error reading provider for %s: %v", collection, res.Errors)
	}

	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return "", nil
	}
	objs, ok := data[cls].([]interface{})
	if !ok || len(objs) == 0 {
		return "", nil
	}
	props, ok := objs[0].(map[string]interface{})
	if !ok {
		return "", nil
	}
	provider, _ := props["embeddingProvider"].(string)
	return provider, nil
}

func parseHits(data map[string]models.JSONObject, cls string) []Hit {
	var hits []Hit

	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objs, ok := get[cls].([]interface{})
	if !ok {
		return nil
	}

	for _, o := range objs {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}

		rec := Record{}
		if v, ok := props["recordId"].(string); ok {
			rec.RecordID = v
		}
		if v, ok := props["text"].(string); ok {
			rec.Text = v
		}
		if v, ok := props["sourceName"].(string); ok {
			rec.SourceName = v
		}
		if v, ok := props["kind"].(string); ok {
			rec.Kind = v
		}
		if v, ok := props["credibilityScore"].(float64); ok {
			rec.CredibilityScore = v
		}
		if v, ok := props["credibilityLevel"].(string); ok {
			rec.CredibilityLevel = v
		}
		if v, ok := props["isVerifiedSource"].(bool); ok {
			rec.IsVerifiedSource = v
		}
		if v, ok := props["url"].(string); ok {
			rec.URL = v
		}
		if v, ok := props["publishedAt"].(float64); ok {
			rec.PublishedAt = int64(v)
		}
		if v, ok := props["embeddingProvider"].(string); ok {
			rec.EmbeddingProvider = v
		}

		var similarity float64
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				similarity = certainty
			}
		}

		hits = append(hits, Hit{Record: rec, Similarity: similarity})
	}
	return hits
}
