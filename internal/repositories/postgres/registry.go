package postgres

import (
	"context"
	"errors"

	"github.com/uptrace/bun"

	"github.com/friperie/api/internal/repositories"
)

// Registry exposes the Postgres repositories over one connection pool.
type Registry struct {
	db            *bun.DB
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

// NewRegistry wraps db. Callers run Migrate beforehand when the schema may be missing.
func NewRegistry(db *bun.DB) (*Registry, error) {
	if db == nil {
		return nil, errors.New("postgres registry requires db")
	}
	return &Registry{
		db:            db,
		categories:    &CategoryRepository{db: db},
		products:      &ProductRepository{db: db},
		orders:        &OrderRepository{db: db},
		conversations: &ConversationRepository{db: db},
		messages:      &MessageRepository{db: db},
		favorites:     &FavoriteRepository{db: db},
		addresses:     &AddressRepository{db: db},
		users:         &UserRepository{db: db},
		reviews:       &ReviewRepository{db: db},
		comments:      &CommentRepository{db: db},
	}, nil
}

func (r *Registry) Close(context.Context) error    { return r.db.Close() }
func (r *Registry) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

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
