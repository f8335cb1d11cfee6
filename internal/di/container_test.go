package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/config"
	"github.com/friperie/api/internal/repositories"
)

// Embedded interfaces satisfy the repository contracts; construction never calls them.
type (
	stubCategories    struct{ repositories.CategoryRepository }
	stubProducts      struct{ repositories.ProductRepository }
	stubOrders        struct{ repositories.OrderRepository }
	stubConversations struct{ repositories.ConversationRepository }
	stubMessages      struct{ repositories.MessageRepository }
	stubFavorites     struct{ repositories.FavoriteRepository }
	stubAddresses     struct{ repositories.AddressRepository }
	stubUsers         struct{ repositories.UserRepository }
	stubReviews       struct{ repositories.ReviewRepository }
	stubComments      struct{ repositories.CommentRepository }
)

type stubRegistry struct {
	closed bool
}

func (r *stubRegistry) Close(context.Context) error { r.closed = true; return nil }
func (r *stubRegistry) Ping(context.Context) error  { return nil }

func (r *stubRegistry) Categories() repositories.CategoryRepository        { return stubCategories{} }
func (r *stubRegistry) Products() repositories.ProductRepository           { return stubProducts{} }
func (r *stubRegistry) Orders() repositories.OrderRepository               { return stubOrders{} }
func (r *stubRegistry) Conversations() repositories.ConversationRepository { return stubConversations{} }
func (r *stubRegistry) Messages() repositories.MessageRepository           { return stubMessages{} }
func (r *stubRegistry) Favorites() repositories.FavoriteRepository         { return stubFavorites{} }
func (r *stubRegistry) Addresses() repositories.AddressRepository          { return stubAddresses{} }
func (r *stubRegistry) Users() repositories.UserRepository                 { return stubUsers{} }
func (r *stubRegistry) Reviews() repositories.ReviewRepository             { return stubReviews{} }
func (r *stubRegistry) Comments() repositories.CommentRepository           { return stubComments{} }

type stubMedia struct{}

func (stubMedia) Put(context.Context, string, string, []byte) (string, error) { return "", nil }
func (stubMedia) Delete(context.Context, string) error                        { return nil }

type stubHealth struct{}

func (stubHealth) Collect(context.Context) (domain.HealthReport, error) {
	return domain.HealthReport{}, nil
}

func TestNewContainerBuildsEveryService(t *testing.T) {
	reg := &stubRegistry{}
	container, err := NewContainer(context.Background(), config.Config{}, reg, Infrastructure{
		Media:  stubMedia{},
		Health: stubHealth{},
	})
	require.NoError(t, err)

	svc := container.Services
	assert.NotNil(t, svc.Categories)
	assert.NotNil(t, svc.Products)
	assert.NotNil(t, svc.Orders)
	assert.NotNil(t, svc.Conversations)
	assert.NotNil(t, svc.Favorites)
	assert.NotNil(t, svc.Addresses)
	assert.NotNil(t, svc.Users)
	assert.NotNil(t, svc.Reviews)
	assert.NotNil(t, svc.Media)
	assert.NotNil(t, svc.System)

	require.NoError(t, container.Close(context.Background()))
	assert.True(t, reg.closed)
}

func TestNewContainerRequiresCollaborators(t *testing.T) {
	_, err := NewContainer(context.Background(), config.Config{}, nil, Infrastructure{})
	assert.Error(t, err)

	_, err = NewContainer(context.Background(), config.Config{}, &stubRegistry{}, Infrastructure{Health: stubHealth{}})
	assert.Error(t, err)

	_, err = NewContainer(context.Background(), config.Config{}, &stubRegistry{}, Infrastructure{Media: stubMedia{}})
	assert.Error(t, err)
}
