package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/friperie/api/internal/domain"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
)

const maxBatchWrites = 400

// CategoryRepository reads the taxonomy from the categories collection.
type CategoryRepository struct {
	provider   *pfirestore.Provider
	categories pfirestore.Collection[categoryDoc]
}

// NewCategoryRepository binds the repository to provider.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	return &CategoryRepository{
		provider:   provider,
		categories: pfirestore.NewCollection[categoryDoc](provider, categoriesCollection),
	}, nil
}

// ListAll returns every category ordered by level then name.
func (r *CategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	docs, err := r.categories.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("level", firestore.Asc).OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

// Upsert writes categories in bulk batches keyed by id.
func (r *CategoryRepository) Upsert(ctx context.Context, categories []domain.Category) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	coll := client.Collection(categoriesCollection)
	for start := 0; start < len(categories); start += maxBatchWrites {
		end := min(start+maxBatchWrites, len(categories))
		writer := client.BulkWriter(ctx)
		jobs := make([]*firestore.BulkWriterJob, 0, end-start)
		for _, category := range categories[start:end] {
			job, err := writer.Set(coll.Doc(category.ID), newCategoryDoc(category))
			if err != nil {
				writer.End()
				return pfirestore.WrapError("categories.upsert", err)
			}
			jobs = append(jobs, job)
		}
		writer.End()
		for _, job := range jobs {
			if _, err := job.Results(); err != nil {
				return pfirestore.WrapError("categories.upsert", err)
			}
		}
	}
	return nil
}
