package vectorindex

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// className maps a collection name to its Weaviate class name. Weaviate
// class names must start with an uppercase letter, so collection names are
// CamelCased rather than used verbatim.
func className(collection string) string {
	switch collection {
	case CollectionVerifiedClaims:
		return "VerifiedClaim"
	case CollectionNewsArticles:
		return "NewsArticle"
	case CollectionGovBulletins:
		return "GovBulletin"
	case CollectionSocialPosts:
		return "SocialPost"
	default:
		return collection
	}
}

func properties() []*models.Property {
	strProp := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"text"}}
	}
	return []*models.Property{
		strProp("recordId"),
		strProp("text"),
		strProp("sourceName"),
		strProp("kind"),
		{Name: "credibilityScore", DataType: []string{"number"}},
		strProp("credibilityLevel"),
		{Name: "isVerifiedSource", DataType: []string{"boolean"}},
		strProp("url"),
		{Name: "publishedAt", DataType: []string{"int"}},
		strProp("embeddingProvider"),
	}
}

// EnsureSchema creates every collection's Weaviate class if it does not
// already exist. It is idempotent and safe to call on every bootstrap,
// the same pattern the teacher used for its single DocumentChunk class.
func EnsureSchema(ctx context.Context, client *weaviate.Client) error {
	for _, collection := range AllCollections {
		cls := className(collection)

		exists, err := client.Schema().ClassExistenceChecker().WithClassName(cls).Do(ctx)
		if err != nil {
			return fmt.Errorf("vectorindex: check class %s: %w", cls, err)
		}
		if exists {
			continue
		}

		class := &models.Class{
			Class:      cls,
			Vectorizer: "none",
			Properties: properties(),
		}
		if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("vectorindex: create class %s: %w", cls, err)
		}
	}
	return nil
}
