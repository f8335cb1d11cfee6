package firestore

import (
	"context"
	"errors"
	"sort"

	"cloud.google.com/go/firestore"

	domain "github.com/friperie/api/internal/domain"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
)

// ReviewRepository keys review documents by (product, user) so a second review collides.
type ReviewRepository struct {
	reviews pfirestore.Collection[reviewDoc]
}

// NewReviewRepository binds the repository to provider.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	return &ReviewRepository{reviews: pfirestore.NewCollection[reviewDoc](provider, reviewsCollection)}, nil
}

func reviewDocID(productID, userID string) string {
	return productID + "_" + userID
}

func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	return r.reviews.Create(ctx, reviewDocID(review.ProductID, review.UserID), reviewDoc{
		ID:        review.ID,
		ProductID: review.ProductID,
		UserID:    review.UserID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt.UTC(),
	})
}

func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	docs, err := r.reviews.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("productId", "==", productID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CommentRepository stores comments under their own ids.
type CommentRepository struct {
	comments pfirestore.Collection[commentDoc]
}

// NewCommentRepository binds the repository to provider.
func NewCommentRepository(provider *pfirestore.Provider) (*CommentRepository, error) {
	if provider == nil {
		return nil, errors.New("comment repository requires firestore provider")
	}
	return &CommentRepository{comments: pfirestore.NewCollection[commentDoc](provider, commentsCollection)}, nil
}

func (r *CommentRepository) Insert(ctx context.Context, comment domain.Comment) error {
	return r.comments.Create(ctx, comment.ID, commentDoc{
		ID:        comment.ID,
		ProductID: comment.ProductID,
		UserID:    comment.UserID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt.UTC(),
	})
}

func (r *CommentRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Comment, error) {
	docs, err := r.comments.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("productId", "==", productID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Comment, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
