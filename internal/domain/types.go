package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage is a page of results with an opaque continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// SizeType selects the size grid applicable to products of a category.
type SizeType string

const (
	SizeTypeAlpha        SizeType = "ALPHA"
	SizeTypeNumericPants SizeType = "NUMERIC_PANTS"
	SizeTypeNumericShoes SizeType = "NUMERIC_SHOES"
	SizeTypeAge          SizeType = "AGE"
	SizeTypeNone         SizeType = "NONE"
)

// Category is a node of the catalogue taxonomy. Level 0 nodes have no parent.
type Category struct {
	ID       string
	Name     string
	Slug     string
	Level    int
	ParentID *string
	SizeType SizeType
}

// CategoryNode is a category with its children attached, as rendered by the tree resolver.
type CategoryNode struct {
	Category
	Children []CategoryNode
}

// ProductStatus tracks catalogue visibility and purchase availability.
type ProductStatus string

const (
	ProductStatusPendingApproval ProductStatus = "PENDING_APPROVAL"
	ProductStatusForSale         ProductStatus = "FOR_SALE"
	ProductStatusRejected        ProductStatus = "REJECTED"
	ProductStatusReserved        ProductStatus = "RESERVED"
	ProductStatusSold            ProductStatus = "SOLD"
)

// Valid reports whether the status is one of the known values.
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusPendingApproval, ProductStatusForSale, ProductStatusRejected,
		ProductStatusReserved, ProductStatusSold:
		return true
	}
	return false
}

// ProductCondition describes the wear of a listed item.
type ProductCondition string

const (
	ConditionNewWithTags    ProductCondition = "NEW_WITH_TAGS"
	ConditionNewWithoutTags ProductCondition = "NEW_WITHOUT_TAGS"
	ConditionVeryGood       ProductCondition = "VERY_GOOD"
	ConditionGood           ProductCondition = "GOOD"
	ConditionFair           ProductCondition = "FAIR"
)

// Valid reports whether the condition is one of the known values.
func (c ProductCondition) Valid() bool {
	switch c {
	case ConditionNewWithTags, ConditionNewWithoutTags, ConditionVeryGood, ConditionGood, ConditionFair:
		return true
	}
	return false
}

// Product is a listing created by a seller. Images keep their upload order.
type Product struct {
	ID                string
	Title             string
	Description       string
	Price             float64
	CategoryID        string
	Size              string
	Brand             string
	Condition         ProductCondition
	Status            ProductStatus
	ModerationComment *string
	SellerID          string
	Images            []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProductView decorates a product with viewer specific flags. Reviews and Comments are only
// loaded for single product reads.
type ProductView struct {
	Product
	IsFavorite bool
	Reviews    []ReviewView
	Comments   []CommentView
}

// ProductSort selects the ordering key for product searches.
type ProductSort string

const (
	ProductSortCreatedAt ProductSort = "createdAt"
	ProductSortPrice     ProductSort = "price"
)

// ProductFilter narrows product searches. CategoryIDs is the already expanded descendant set.
type ProductFilter struct {
	Search      string
	CategoryIDs []string
	Size        string
	Brand       string
	Condition   ProductCondition
	Statuses    []ProductStatus
	SellerID    string
	MinPrice    *float64
	MaxPrice    *float64
	SortBy      ProductSort
	Order       SortOrder
	Pagination  Pagination
}

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Order records a purchase of a single product. SellerID is copied from the product at creation.
type Order struct {
	ID              string
	ProductID       string
	BuyerID         string
	SellerID        string
	TotalPrice      float64
	ShippingAddress string
	PickupAddress   *string
	Status          OrderStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeliveredAt     *time.Time
}

// OrderRole selects which side of the orders a participant lists.
type OrderRole string

const (
	OrderRoleBuyer  OrderRole = "buyer"
	OrderRoleSeller OrderRole = "seller"
)

// Conversation is the unique thread for a (product, buyer, seller) triple.
type Conversation struct {
	ID            string
	ProductID     string
	BuyerID       string
	SellerID      string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

// HasParticipant reports whether userID is the buyer or the seller.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.BuyerID == userID || c.SellerID == userID)
}

// ConversationKey identifies a conversation by its unique triple.
type ConversationKey struct {
	ProductID string
	BuyerID   string
	SellerID  string
}

// Key returns the uniqueness triple of the conversation.
func (c Conversation) Key() ConversationKey {
	return ConversationKey{ProductID: c.ProductID, BuyerID: c.BuyerID, SellerID: c.SellerID}
}

// Message is a chat entry within a conversation.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	IsRead         bool
	CreatedAt      time.Time
}

// Favorite links a user to a product they bookmarked.
type Favorite struct {
	ID        string
	UserID    string
	ProductID string
	CreatedAt time.Time
}

// Address is a saved postal address. At most one address per user is the default.
type Address struct {
	ID        string
	UserID    string
	Label     string
	Street    string
	City      string
	Postal    string
	Country   string
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserProfile holds the editable details of an account. The id is the identity provider uid.
type UserProfile struct {
	ID        string
	FirstName string
	LastName  string
	Phone     string
	AvatarURL string
	Bio       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicProfile is what other users see: no contact details, plus the visible listings.
type PublicProfile struct {
	ID        string
	FirstName string
	LastName  string
	AvatarURL string
	Bio       string
	CreatedAt time.Time
	Listings  []Product
}

// Author names the writer of a review or comment.
type Author struct {
	ID        string
	FirstName string
	LastName  string
}

// Review rates a product from 1 to 5. A user reviews a product at most once.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// ReviewView is a review with its author resolved.
type ReviewView struct {
	Review
	Author Author
}

// Comment is a public remark on a listing.
type Comment struct {
	ID        string
	ProductID string
	UserID    string
	Content   string
	CreatedAt time.Time
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	Comment
	Author Author
}

// MediaFile is an uploaded binary awaiting storage.
type MediaFile struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Health statuses reported by readiness checks.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// HealthCheck is the outcome of one dependency check.
type HealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency checks for the readiness endpoint.
type HealthReport struct {
	Status      string
	Checks      map[string]HealthCheck
	Version     string
	Uptime      time.Duration
	GeneratedAt time.Time
}
