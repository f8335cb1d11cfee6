package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/repositories"
)

const (
	minReviewRating     = 1
	maxReviewRating     = 5
	maxReviewTextLength = 1000
	maxCommentLength    = 1000

	reviewEventCreated  = "review.created"
	commentEventCreated = "comment.created"
)

// ReviewServiceDeps bundles collaborators required to construct the review service.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Comments    repositories.CommentRepository
	Products    repositories.ProductRepository
	Users       repositories.UserRepository
	Sanitizer   TextSanitizer
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

type reviewService struct {
	reviews   repositories.ReviewRepository
	comments  repositories.CommentRepository
	products  repositories.ProductRepository
	users     repositories.UserRepository
	sanitizer TextSanitizer
	clock     func() time.Time
	newID     func() string
	logger    Logger
}

// NewReviewService wires dependencies into a ReviewService implementation. Users is optional;
// without it authors carry only their id.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Comments == nil {
		return nil, errors.New("review service: comment repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("review service: product repository is required")
	}
	return &reviewService{
		reviews:   deps.Reviews,
		comments:  deps.Comments,
		products:  deps.Products,
		users:     deps.Users,
		sanitizer: sanitizerOrPassthrough(deps.Sanitizer),
		clock:     utcClock(deps.Clock),
		newID:     idGenerator(deps.IDGenerator),
		logger:    loggerOrNoop(deps.Logger),
	}, nil
}

func (s *reviewService) AddReview(ctx context.Context, cmd AddReviewCommand) (Review, error) {
	productID, err := requireID(cmd.ProductID, "product id")
	if err != nil {
		return Review{}, err
	}
	userID, err := requireID(cmd.UserID, "user id")
	if err != nil {
		return Review{}, err
	}
	if cmd.Rating < minReviewRating || cmd.Rating > maxReviewRating {
		return Review{}, fmt.Errorf("%w: rating must be between %d and %d", domain.ErrInvalidInput, minReviewRating, maxReviewRating)
	}
	text := s.sanitizer.Sanitize(strings.TrimSpace(cmd.Comment))
	if len([]rune(text)) > maxReviewTextLength {
		return Review{}, fmt.Errorf("%w: comment exceeds %d characters", domain.ErrInvalidInput, maxReviewTextLength)
	}

	product, err := s.listedProduct(ctx, productID)
	if err != nil {
		return Review{}, err
	}
	if product.SellerID == userID {
		return Review{}, fmt.Errorf("%w: cannot review your own product", domain.ErrSelfReference)
	}

	review := Review{
		ID:        reviewIDPrefix + s.newID(),
		ProductID: productID,
		UserID:    userID,
		Rating:    cmd.Rating,
		Comment:   text,
		CreatedAt: s.clock(),
	}
	if err := s.reviews.Insert(ctx, review); err != nil {
		if isRepoConflict(err) {
			return Review{}, fmt.Errorf("%w: product %s already reviewed", domain.ErrConflict, productID)
		}
		return Review{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	s.logger(ctx, reviewEventCreated, map[string]any{"review": review.ID, "product": productID, "rating": review.Rating})
	return review, nil
}

func (s *reviewService) AddComment(ctx context.Context, cmd AddCommentCommand) (Comment, error) {
	productID, err := requireID(cmd.ProductID, "product id")
	if err != nil {
		return Comment{}, err
	}
	userID, err := requireID(cmd.UserID, "user id")
	if err != nil {
		return Comment{}, err
	}
	content := s.sanitizer.Sanitize(strings.TrimSpace(cmd.Content))
	switch {
	case content == "":
		return Comment{}, fmt.Errorf("%w: content is required", domain.ErrInvalidInput)
	case len([]rune(content)) > maxCommentLength:
		return Comment{}, fmt.Errorf("%w: content exceeds %d characters", domain.ErrInvalidInput, maxCommentLength)
	}
	if _, err := s.listedProduct(ctx, productID); err != nil {
		return Comment{}, err
	}

	comment := Comment{
		ID:        commentIDPrefix + s.newID(),
		ProductID: productID,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.clock(),
	}
	if err := s.comments.Insert(ctx, comment); err != nil {
		return Comment{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	s.logger(ctx, commentEventCreated, map[string]any{"comment": comment.ID, "product": productID})
	return comment, nil
}

// ForProduct loads reviews and comments concurrently, then resolves their authors in one batch.
func (s *reviewService) ForProduct(ctx context.Context, productID string) ([]ReviewView, []CommentView, error) {
	id, err := requireID(productID, "product id")
	if err != nil {
		return nil, nil, err
	}
	var (
		reviews  []Review
		comments []Comment
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		reviews, err = s.reviews.ListByProduct(groupCtx, id)
		return err
	})
	group.Go(func() error {
		var err error
		comments, err = s.comments.ListByProduct(groupCtx, id)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, nil, mapRepositoryError(err, domain.ErrProductNotFound)
	}

	userIDs := make([]string, 0, len(reviews)+len(comments))
	for _, review := range reviews {
		userIDs = append(userIDs, review.UserID)
	}
	for _, comment := range comments {
		userIDs = append(userIDs, comment.UserID)
	}
	authors, err := s.authors(ctx, userIDs)
	if err != nil {
		return nil, nil, err
	}

	reviewViews := make([]ReviewView, len(reviews))
	for i, review := range reviews {
		reviewViews[i] = ReviewView{Review: review, Author: authors.lookup(review.UserID)}
	}
	commentViews := make([]CommentView, len(comments))
	for i, comment := range comments {
		commentViews[i] = CommentView{Comment: comment, Author: authors.lookup(comment.UserID)}
	}
	return reviewViews, commentViews, nil
}

// listedProduct returns the product when it is visible in the catalogue.
func (s *reviewService) listedProduct(ctx context.Context, productID string) (Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	switch product.Status {
	case domain.ProductStatusPendingApproval, domain.ProductStatusRejected:
		return Product{}, fmt.Errorf("%w: product %s is not listed", domain.ErrProductUnavailable, productID)
	}
	return product, nil
}

type authorIndex map[string]domain.Author

func (a authorIndex) lookup(userID string) domain.Author {
	if author, ok := a[userID]; ok {
		return author
	}
	return domain.Author{ID: userID}
}

func (s *reviewService) authors(ctx context.Context, userIDs []string) (authorIndex, error) {
	index := authorIndex{}
	if s.users == nil || len(userIDs) == 0 {
		return index, nil
	}
	unique := make([]string, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	profiles, err := s.users.FindByIDs(ctx, unique)
	if err != nil {
		return nil, mapRepositoryError(err, domain.ErrUserNotFound)
	}
	for _, profile := range profiles {
		index[profile.ID] = domain.Author{ID: profile.ID, FirstName: profile.FirstName, LastName: profile.LastName}
	}
	return index, nil
}
