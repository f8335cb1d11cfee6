package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	domain "github.com/friperie/api/internal/domain"
	ppostgres "github.com/friperie/api/internal/platform/postgres"
)

// UserRepository stores profiles keyed by uid.
type UserRepository struct {
	db *bun.DB
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	var row userRow
	err := r.db.NewSelect().Model(&row).Where("id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProfile{}, ppostgres.NotFound("users.get", "user")
	}
	if err != nil {
		return domain.UserProfile{}, ppostgres.WrapError("users.get", err)
	}
	return row.toDomain(), nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, userIDs []string) ([]domain.UserProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []userRow
	if err := r.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(userIDs)).Scan(ctx); err != nil {
		return nil, ppostgres.WrapError("users.findByIDs", err)
	}
	out := make([]domain.UserProfile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Upsert keeps the original created_at of an existing profile.
func (r *UserRepository) Upsert(ctx context.Context, u domain.UserProfile) error {
	_, err := r.db.NewInsert().Model(&userRow{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}).
		On("CONFLICT (id) DO UPDATE").
		Set("first_name = EXCLUDED.first_name").
		Set("last_name = EXCLUDED.last_name").
		Set("phone = EXCLUDED.phone").
		Set("avatar_url = EXCLUDED.avatar_url").
		Set("bio = EXCLUDED.bio").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return ppostgres.WrapError("users.upsert", err)
}

// ReviewRepository relies on the unique (product_id, user_id) index.
type ReviewRepository struct {
	db *bun.DB
}

func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	_, err := r.db.NewInsert().Model(&reviewRow{
		ID:        review.ID,
		ProductID: review.ProductID,
		UserID:    review.UserID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt.UTC(),
	}).Exec(ctx)
	return ppostgres.WrapError("reviews.insert", err)
}

func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	var rows []reviewRow
	err := r.db.NewSelect().Model(&rows).Where("product_id = ?", productID).Order("created_at ASC", "id ASC").Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("reviews.list", err)
	}
	out := make([]domain.Review, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// CommentRepository stores listing comments.
type CommentRepository struct {
	db *bun.DB
}

func (r *CommentRepository) Insert(ctx context.Context, comment domain.Comment) error {
	_, err := r.db.NewInsert().Model(&commentRow{
		ID:        comment.ID,
		ProductID: comment.ProductID,
		UserID:    comment.UserID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt.UTC(),
	}).Exec(ctx)
	return ppostgres.WrapError("comments.insert", err)
}

func (r *CommentRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Comment, error) {
	var rows []commentRow
	err := r.db.NewSelect().Model(&rows).Where("product_id = ?", productID).Order("created_at ASC", "id ASC").Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("comments.list", err)
	}
	out := make([]domain.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
