package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/repositories"
)

const (
	maxProfileNameLength   = 80
	maxProfilePhoneLength  = 32
	maxProfileAvatarLength = 512
	maxProfileBioLength    = 500
	publicListingLimit     = 100
)

// publicListingStatuses are the listings other users may see on a profile.
var publicListingStatuses = []domain.ProductStatus{
	domain.ProductStatusForSale,
	domain.ProductStatusReserved,
	domain.ProductStatusSold,
}

// UserServiceDeps bundles collaborators required to construct the user service.
type UserServiceDeps struct {
	Users     repositories.UserRepository
	Products  repositories.ProductRepository
	Sanitizer TextSanitizer
	Clock     func() time.Time
	Logger    Logger
}

type userService struct {
	users     repositories.UserRepository
	products  repositories.ProductRepository
	sanitizer TextSanitizer
	clock     func() time.Time
	logger    Logger
}

// NewUserService wires dependencies into a UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("user service: product repository is required")
	}
	return &userService{
		users:     deps.Users,
		products:  deps.Products,
		sanitizer: sanitizerOrPassthrough(deps.Sanitizer),
		clock:     utcClock(deps.Clock),
		logger:    loggerOrNoop(deps.Logger),
	}, nil
}

func (s *userService) Me(ctx context.Context, userID string) (UserProfile, error) {
	id, err := requireID(userID, "user id")
	if err != nil {
		return UserProfile{}, err
	}
	profile, err := s.users.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return UserProfile{ID: id}, nil
		}
		return UserProfile{}, mapRepositoryError(err, domain.ErrUserNotFound)
	}
	return profile, nil
}

func (s *userService) UpdateMe(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error) {
	id, err := requireID(cmd.UserID, "user id")
	if err != nil {
		return UserProfile{}, err
	}
	if cmd.FirstName == nil && cmd.LastName == nil && cmd.Phone == nil && cmd.AvatarURL == nil && cmd.Bio == nil {
		return UserProfile{}, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}

	now := s.clock()
	profile, err := s.users.FindByID(ctx, id)
	switch {
	case err == nil:
	case isRepoNotFound(err):
		profile = UserProfile{ID: id, CreatedAt: now}
	default:
		return UserProfile{}, mapRepositoryError(err, domain.ErrUserNotFound)
	}

	if cmd.FirstName != nil {
		profile.FirstName = s.sanitizer.Sanitize(strings.TrimSpace(*cmd.FirstName))
	}
	if cmd.LastName != nil {
		profile.LastName = s.sanitizer.Sanitize(strings.TrimSpace(*cmd.LastName))
	}
	if cmd.Phone != nil {
		profile.Phone = strings.TrimSpace(*cmd.Phone)
	}
	if cmd.AvatarURL != nil {
		profile.AvatarURL = strings.TrimSpace(*cmd.AvatarURL)
	}
	if cmd.Bio != nil {
		profile.Bio = s.sanitizer.Sanitize(strings.TrimSpace(*cmd.Bio))
	}
	if err := validateProfile(profile); err != nil {
		return UserProfile{}, err
	}
	profile.UpdatedAt = now

	if err := s.users.Upsert(ctx, profile); err != nil {
		return UserProfile{}, mapRepositoryError(err, domain.ErrUserNotFound)
	}
	s.logger(ctx, "user.profile.updated", map[string]any{"user": id})
	return profile, nil
}

// Public returns the profile without contact details, with up to publicListingLimit of the
// user's visible listings, newest first.
func (s *userService) Public(ctx context.Context, userID string) (PublicProfile, error) {
	id, err := requireID(userID, "user id")
	if err != nil {
		return PublicProfile{}, err
	}
	profile, err := s.users.FindByID(ctx, id)
	if err != nil {
		return PublicProfile{}, mapRepositoryError(err, domain.ErrUserNotFound)
	}
	page, err := s.products.Search(ctx, domain.ProductFilter{
		SellerID:   id,
		Statuses:   publicListingStatuses,
		SortBy:     domain.ProductSortCreatedAt,
		Order:      domain.SortDesc,
		Pagination: Pagination{PageSize: publicListingLimit},
	})
	if err != nil {
		return PublicProfile{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	return PublicProfile{
		ID:        profile.ID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		AvatarURL: profile.AvatarURL,
		Bio:       profile.Bio,
		CreatedAt: profile.CreatedAt,
		Listings:  page.Items,
	}, nil
}

func validateProfile(p UserProfile) error {
	var problems []string
	if len([]rune(p.FirstName)) > maxProfileNameLength || len([]rune(p.LastName)) > maxProfileNameLength {
		problems = append(problems, fmt.Sprintf("names are limited to %d characters", maxProfileNameLength))
	}
	if len(p.Phone) > maxProfilePhoneLength {
		problems = append(problems, fmt.Sprintf("phone exceeds %d characters", maxProfilePhoneLength))
	}
	if p.AvatarURL != "" {
		parsed, err := url.Parse(p.AvatarURL)
		switch {
		case len(p.AvatarURL) > maxProfileAvatarLength:
			problems = append(problems, fmt.Sprintf("avatar url exceeds %d characters", maxProfileAvatarLength))
		case err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "":
			problems = append(problems, "avatar url must be an absolute http(s) url")
		}
	}
	if len([]rune(p.Bio)) > maxProfileBioLength {
		problems = append(problems, fmt.Sprintf("bio exceeds %d characters", maxProfileBioLength))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}
