// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// evidenceProperties returns the property set shared by all evidence classes.
func evidenceProperties() []*models.Property {
	indexFilterable := new(bool)
	*indexFilterable = true

	return []*models.Property{
		{
			Name:            "record_id",
			DataType:        []string{"text"},
			Description:     "Stable caller-assigned identity for the snippet.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		{
			Name:         "content",
			DataType:     []string{"text"},
			Description:  "The snippet text that was embedded.",
			Tokenization: "word",
		},
		{
			Name:            "source_name",
			DataType:        []string{"text"},
			Description:     "Publisher or author name.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		{
			Name:            "url",
			DataType:        []string{"text"},
			Description:     "Normalized source URL. May be empty.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		{
			Name:            "kind",
			DataType:        []string{"text"},
			Description:     "Evidence kind: news, gov, social, factcheck.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		{
			Name:            "published_at",
			DataType:        []string{"number"},
			Description:     "Publication timestamp (Unix ms). 0 if unknown.",
			IndexFilterable: indexFilterable,
		},
		{
			Name:            "credibility_score",
			DataType:        []string{"number"},
			Description:     "Source credibility in [0,1], fixed at write time.",
			IndexFilterable: indexFilterable,
		},
		{
			Name:            "credibility_band",
			DataType:        []string{"text"},
			Description:     "Credibility band: high, medium-high, medium, low.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		{
			Name:            "language",
			DataType:        []string{"text"},
			Description:     "BCP-47 language tag of the content.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		{
			Name:            "chunk_ordinal",
			DataType:        []string{"int"},
			Description:     "Position of the chunk within its parent document.",
			IndexFilterable: indexFilterable,
		},
	}
}

func evidenceClass(name, description string) *models.Class {
	return &models.Class{
		Class:       name,
		Description: description,
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: evidenceProperties(),
	}
}

func GetNewsArticleClass() *models.Class {
	return evidenceClass(CollectionNews, "Embedded chunks of ingested news articles.")
}

func GetGovBulletinClass() *models.Class {
	return evidenceClass(CollectionGov, "Embedded chunks of government bulletins and advisories.")
}

func GetSocialPostClass() *models.Class {
	return evidenceClass(CollectionSocial, "Embedded social media posts. Low-trust corroboration only.")
}

// GetVerifiedClaimClass extends the evidence property set with the verdict
// fields that make the canon usable for phase-one lookups.
func GetVerifiedClaimClass() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	class := evidenceClass(CollectionVerifiedClaims,
		"Canonical already-fact-checked claims with their verdicts.")
	class.Properties = append(class.Properties,
		&models.Property{
			Name:            "verdict",
			DataType:        []string{"text"},
			Description:     "Normalized verdict: true, false, misleading, unverified.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		&models.Property{
			Name:         "explanation",
			DataType:     []string{"text"},
			Description:  "The fact-checker's published rationale.",
			Tokenization: "word",
		},
	)
	return class
}

// GetCollectionMetaClass stores one object per collection recording which
// embedding provider produced its vectors.
func GetCollectionMetaClass() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "CollectionMeta",
		Description: "Per-collection embedding provider bookkeeping.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "collection",
				DataType:        []string{"text"},
				Description:     "The collection this metadata describes.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "embedding_provider",
				DataType:        []string{"text"},
				Description:     "Name of the provider that embedded this collection.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "dimensions",
				DataType:        []string{"int"},
				Description:     "Vector dimensionality of the collection.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "updated_at",
				DataType:        []string{"number"},
				Description:     "Unix ms of the last metadata write.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureSchema creates any missing classes. Existing classes are left
// untouched.
func EnsureSchema(ctx context.Context, client *weaviate.Client) error {
	schemaGetters := []func() *models.Class{
		GetVerifiedClaimClass,
		GetNewsArticleClass,
		GetGovBulletinClass,
		GetSocialPostClass,
		GetCollectionMetaClass,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
		if err == nil {
			slog.Info("Schema already exists", "class", class.Class)
			continue
		}

		slog.Info("Schema not found, creating it...", "class", class.Class)
		if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("failed to create schema for class %s: %w", class.Class, err)
		}
		slog.Info("Successfully created schema", "class", class.Class)
	}
	return nil
}
