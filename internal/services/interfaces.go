package services

import (
	"context"
	"time"

	domain "github.com/friperie/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination    = domain.Pagination
	SortOrder     = domain.SortOrder
	Category      = domain.Category
	CategoryNode  = domain.CategoryNode
	Product       = domain.Product
	ProductView   = domain.ProductView
	ProductStatus = domain.ProductStatus
	Order         = domain.Order
	OrderStatus   = domain.OrderStatus
	OrderRole     = domain.OrderRole
	Conversation  = domain.Conversation
	Message       = domain.Message
	Favorite      = domain.Favorite
	Address       = domain.Address
	MediaFile     = domain.MediaFile
	HealthReport  = domain.HealthReport
	UserProfile   = domain.UserProfile
	PublicProfile = domain.PublicProfile
	Review        = domain.Review
	ReviewView    = domain.ReviewView
	Comment       = domain.Comment
	CommentView   = domain.CommentView
)

// CategoryService resolves the catalogue taxonomy.
type CategoryService interface {
	ResolveTree(ctx context.Context) ([]CategoryNode, error)
	ResolveDescendants(ctx context.Context, categoryID string) ([]string, error)
	Get(ctx context.Context, categoryID string) (Category, error)
}

// ProductService manages listings and their moderation.
type ProductService interface {
	Create(ctx context.Context, cmd CreateProductCommand) (Product, error)
	Get(ctx context.Context, productID, viewerID string) (ProductView, error)
	Search(ctx context.Context, query ProductQuery) (domain.CursorPage[ProductView], error)
	Update(ctx context.Context, cmd UpdateProductCommand) (Product, error)
	Delete(ctx context.Context, productID, actorID string) error
	Moderate(ctx context.Context, cmd ModerateProductCommand) (Product, error)
}

// OrderService drives the coupled order/product lifecycle.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	Get(ctx context.Context, orderID, callerID string) (Order, error)
	List(ctx context.Context, userID string, role OrderRole) ([]Order, error)
	Update(ctx context.Context, cmd UpdateOrderCommand) (Order, error)
}

// ConversationService deduplicates threads and carries messages between participants.
type ConversationService interface {
	FindOrCreate(ctx context.Context, productID, callerID string) (Conversation, error)
	List(ctx context.Context, userID string) ([]Conversation, error)
	Get(ctx context.Context, conversationID, callerID string) (Conversation, error)
	Messages(ctx context.Context, conversationID, callerID string) ([]Message, error)
	SendMessage(ctx context.Context, cmd SendMessageCommand) (Message, error)
	MarkAsRead(ctx context.Context, conversationID, callerID string) (int, error)
}

// FavoriteService toggles and lists bookmarks.
type FavoriteService interface {
	Toggle(ctx context.Context, userID, productID string) (bool, error)
	List(ctx context.Context, userID string) ([]Product, error)
}

// AddressService manages saved addresses.
type AddressService interface {
	List(ctx context.Context, userID string) ([]Address, error)
	Get(ctx context.Context, userID, addressID string) (Address, error)
	Create(ctx context.Context, cmd UpsertAddressCommand) (Address, error)
	Update(ctx context.Context, cmd UpsertAddressCommand) (Address, error)
	Delete(ctx context.Context, userID, addressID string) error
	SetDefault(ctx context.Context, userID, addressID string) (Address, error)
}

// UserService manages profiles.
type UserService interface {
	// Me returns the stored profile, or an empty one carrying only the id when none was saved yet.
	Me(ctx context.Context, userID string) (UserProfile, error)
	UpdateMe(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error)
	Public(ctx context.Context, userID string) (PublicProfile, error)
}

// ReviewService records ratings and comments on listings.
type ReviewService interface {
	AddReview(ctx context.Context, cmd AddReviewCommand) (Review, error)
	AddComment(ctx context.Context, cmd AddCommentCommand) (Comment, error)
	ForProduct(ctx context.Context, productID string) ([]ReviewView, []CommentView, error)
}

// MediaService stores product images.
type MediaService interface {
	Upload(ctx context.Context, ownerID string, file MediaFile) (string, error)
	UploadMany(ctx context.Context, ownerID string, files []MediaFile) ([]string, error)
	DeleteMany(ctx context.Context, urls []string) error
}

// SystemService reports readiness.
type SystemService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
}

// CreateProductCommand submits a listing for moderation.
type CreateProductCommand struct {
	SellerID    string
	Title       string
	Description string
	Price       float64
	CategoryID  string
	Size        string
	Brand       string
	Condition   domain.ProductCondition
	Images      []string
}

// UpdateProductCommand edits a listing. Nil fields are left untouched; a non-nil Images replaces
// the whole list.
type UpdateProductCommand struct {
	ProductID   string
	ActorID     string
	Title       *string
	Description *string
	Price       *float64
	CategoryID  *string
	Size        *string
	Brand       *string
	Condition   *domain.ProductCondition
	Images      *[]string
}

// ModerateProductCommand records a moderation decision.
type ModerateProductCommand struct {
	ProductID string
	Decision  domain.ModerationDecision
	Comment   string
	Reviewer  string
}

// ProductQuery is the caller facing search request.
type ProductQuery struct {
	ViewerID   string
	Search     string
	CategoryID string
	Size       string
	Brand      string
	Condition  domain.ProductCondition
	Status     domain.ProductStatus
	SellerID   string
	MinPrice   *float64
	MaxPrice   *float64
	SortBy     domain.ProductSort
	Order      SortOrder
	Pagination Pagination
}

// CreateOrderCommand places an order on a product.
type CreateOrderCommand struct {
	BuyerID         string
	ProductID       string
	TotalPrice      float64
	ShippingAddress string
}

// UpdateOrderCommand changes the status and/or addresses of an order.
type UpdateOrderCommand struct {
	OrderID         string
	ActorID         string
	Status          *OrderStatus
	ShippingAddress *string
	PickupAddress   *string
}

// SendMessageCommand posts a message into a conversation.
type SendMessageCommand struct {
	ConversationID string
	SenderID       string
	Content        string
}

// UpsertAddressCommand creates or updates an address. IsDefault is only applied when set.
type UpsertAddressCommand struct {
	UserID    string
	AddressID string
	Label     string
	Street    string
	City      string
	Postal    string
	Country   string
	IsDefault *bool
}

// UpdateProfileCommand edits the caller's profile. Nil fields are left untouched.
type UpdateProfileCommand struct {
	UserID    string
	FirstName *string
	LastName  *string
	Phone     *string
	AvatarURL *string
	Bio       *string
}

// AddReviewCommand rates a product.
type AddReviewCommand struct {
	ProductID string
	UserID    string
	Rating    int
	Comment   string
}

// AddCommentCommand posts a public comment on a product.
type AddCommentCommand struct {
	ProductID string
	UserID    string
	Content   string
}

// TaskScheduler runs best-effort work after the caller's operation committed. Enqueue never blocks
// and reports whether the task was accepted.
type TaskScheduler interface {
	Enqueue(ctx context.Context, name string, fn func(context.Context) error) bool
}

// MessageBroadcaster delivers new messages to connected participants.
type MessageBroadcaster interface {
	Broadcast(ctx context.Context, event MessageEvent) error
}

// MessageEvent is the payload pushed to participants of a conversation.
type MessageEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Recipients     []string  `json:"recipients"`
	CreatedAt      time.Time `json:"createdAt"`
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	ProductID      string    `json:"productId"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	CurrentStatus  string    `json:"currentStatus"`
	ActorID        string    `json:"actorId"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// MediaStore persists binary objects and returns their public URLs.
type MediaStore interface {
	Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// TextSanitizer strips markup from user supplied text.
type TextSanitizer interface {
	Sanitize(input string) string
}

// Logger records structured service events.
type Logger func(ctx context.Context, event string, fields map[string]any)
