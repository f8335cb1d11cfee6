package repositories

import (
	"context"

	domain "github.com/friperie/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
// Both the Firestore and the Postgres backends implement it.
type Registry interface {
	Close(ctx context.Context) error

	Categories() CategoryRepository
	Products() ProductRepository
	Orders() OrderRepository
	Conversations() ConversationRepository
	Messages() MessageRepository
	Favorites() FavoriteRepository
	Addresses() AddressRepository
	Users() UserRepository
	Reviews() ReviewRepository
	Comments() CommentRepository
	Ping(ctx context.Context) error
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CategoryRepository reads the taxonomy. Upsert is used by the seeder only.
type CategoryRepository interface {
	ListAll(ctx context.Context) ([]domain.Category, error)
	Upsert(ctx context.Context, categories []domain.Category) error
}

// ProductMutator computes the next product state inside a store transaction.
type ProductMutator func(current domain.Product) (domain.Product, error)

// ProductRepository persists listings.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// Mutate reads the product and writes the result of fn atomically.
	Mutate(ctx context.Context, productID string, fn ProductMutator) (domain.Product, error)
	Delete(ctx context.Context, productID string) error
	Search(ctx context.Context, filter domain.ProductFilter) (domain.CursorPage[domain.Product], error)
	FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error)
}

// PlaceFunc derives the new order and the updated product from the locked product.
type PlaceFunc func(product domain.Product) (domain.Order, domain.Product, error)

// TransitionFunc derives the next order and product from their locked current states.
type TransitionFunc func(order domain.Order, product domain.Product) (domain.Order, domain.Product, error)

// OrderRepository persists orders together with the paired product status. Both methods read and
// write the order and its product in a single transaction; fn may run more than once on retry.
type OrderRepository interface {
	Place(ctx context.Context, productID string, fn PlaceFunc) (domain.Order, error)
	Transition(ctx context.Context, orderID string, fn TransitionFunc) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByParticipant(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
}

// OrderListFilter selects orders where the user holds the given role, newest first.
type OrderListFilter struct {
	UserID string
	Role   domain.OrderRole
}

// ConversationRepository persists threads. Create reports a conflict error when the
// (product, buyer, seller) triple already exists.
type ConversationRepository interface {
	FindByKey(ctx context.Context, key domain.ConversationKey) (domain.Conversation, error)
	Create(ctx context.Context, conversation domain.Conversation) error
	FindByID(ctx context.Context, conversationID string) (domain.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error)
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	// Append inserts the message and bumps the conversation's LastMessageAt atomically.
	Append(ctx context.Context, message domain.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
	// MarkRead flips IsRead on unread messages not authored by readerID and returns how many changed.
	MarkRead(ctx context.Context, conversationID, readerID string) (int, error)
}

// FavoriteRepository persists bookmarks.
type FavoriteRepository interface {
	Find(ctx context.Context, userID, productID string) (domain.Favorite, bool, error)
	Insert(ctx context.Context, favorite domain.Favorite) error
	Delete(ctx context.Context, userID, productID string) error
	ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error)
	// FavoritedAmong returns the subset of productIDs the user has bookmarked.
	FavoritedAmong(ctx context.Context, userID string, productIDs []string) (map[string]bool, error)
}

// AddressRepository persists user addresses. Replace writes the full set of a user's addresses
// atomically so default flags stay consistent.
type AddressRepository interface {
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Replace(ctx context.Context, userID string, fn func(current []domain.Address) ([]domain.Address, error)) ([]domain.Address, error)
}

// UserRepository persists profiles keyed by the identity provider uid.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	// FindByIDs skips unknown ids.
	FindByIDs(ctx context.Context, userIDs []string) ([]domain.UserProfile, error)
	Upsert(ctx context.Context, profile domain.UserProfile) error
}

// ReviewRepository persists product ratings. Insert reports a conflict error when the user
// already reviewed the product.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) error
	// ListByProduct returns the reviews of a product, oldest first.
	ListByProduct(ctx context.Context, productID string) ([]domain.Review, error)
}

// CommentRepository persists listing comments.
type CommentRepository interface {
	Insert(ctx context.Context, comment domain.Comment) error
	// ListByProduct returns the comments of a product, oldest first.
	ListByProduct(ctx context.Context, productID string) ([]domain.Comment, error)
}
