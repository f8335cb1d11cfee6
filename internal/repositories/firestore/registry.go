package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/friperie/api/internal/platform/firestore"
	"github.com/friperie/api/internal/repositories"
)

// Registry wires every Firestore repository on a shared provider.
type Registry struct {
	provider      *pfirestore.Provider
	categories    *CategoryRepository
	products      *ProductRepository
	orders        *OrderRepository
	conversations *ConversationRepository
	messages      *MessageRepository
	favorites     *FavoriteRepository
	addresses     *AddressRepository
	users         *UserRepository
	reviews       *ReviewRepository
	comments      *CommentRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the repositories. The provider dials lazily on first use.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	reg := &Registry{provider: provider}
	var errs []error
	var err error
	reg.categories, err = NewCategoryRepository(provider)
	errs = append(errs, err)
	reg.products, err = NewProductRepository(provider)
	errs = append(errs, err)
	reg.orders, err = NewOrderRepository(provider)
	errs = append(errs, err)
	reg.conversations, err = NewConversationRepository(provider)
	errs = append(errs, err)
	reg.messages, err = NewMessageRepository(provider)
	errs = append(errs, err)
	reg.favorites, err = NewFavoriteRepository(provider)
	errs = append(errs, err)
	reg.addresses, err = NewAddressRepository(provider)
	errs = append(errs, err)
	reg.users, err = NewUserRepository(provider)
	errs = append(errs, err)
	reg.reviews, err = NewReviewRepository(provider)
	errs = append(errs, err)
	reg.comments, err = NewCommentRepository(provider)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }
func (r *Registry) Ping(ctx context.Context) error  { return r.provider.Ping(ctx) }

func (r *Registry) Categories() repositories.CategoryRepository        { return r.categories }
func (r *Registry) Products() repositories.ProductRepository           { return r.products }
func (r *Registry) Orders() repositories.OrderRepository               { return r.orders }
func (r *Registry) Conversations() repositories.ConversationRepository { return r.conversations }
func (r *Registry) Messages() repositories.MessageRepository           { return r.messages }
func (r *Registry) Favorites() repositories.FavoriteRepository         { return r.favorites }
func (r *Registry) Addresses() repositories.AddressRepository          { return r.addresses }
func (r *Registry) Users() repositories.UserRepository                 { return r.users }
func (r *Registry) Reviews() repositories.ReviewRepository             { return r.reviews }
func (r *Registry) Comments() repositories.CommentRepository           { return r.comments }
