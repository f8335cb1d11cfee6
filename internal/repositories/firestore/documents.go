package firestore

import (
	"time"

	domain "github.com/friperie/api/internal/domain"
)

const (
	categoriesCollection       = "categories"
	productsCollection         = "products"
	ordersCollection           = "orders"
	conversationsCollection    = "conversations"
	conversationKeysCollection = "conversationKeys"
	messagesSubcollection      = "messages"
	favoritesCollection        = "favorites"
	usersCollection            = "users"
	addressesSubcollection     = "addresses"
	reviewsCollection          = "reviews"
	commentsCollection         = "comments"
)

type categoryDoc struct {
	ID       string  `firestore:"id"`
	Name     string  `firestore:"name"`
	Slug     string  `firestore:"slug"`
	Level    int     `firestore:"level"`
	ParentID *string `firestore:"parentId"`
	SizeType string  `firestore:"sizeType"`
}

func newCategoryDoc(c domain.Category) categoryDoc {
	return categoryDoc{ID: c.ID, Name: c.Name, Slug: c.Slug, Level: c.Level, ParentID: c.ParentID, SizeType: string(c.SizeType)}
}

func (d categoryDoc) toDomain() domain.Category {
	return domain.Category{ID: d.ID, Name: d.Name, Slug: d.Slug, Level: d.Level, ParentID: d.ParentID, SizeType: domain.SizeType(d.SizeType)}
}

type productDoc struct {
	ID                string    `firestore:"id"`
	Title             string    `firestore:"title"`
	Description       string    `firestore:"description"`
	Price             float64   `firestore:"price"`
	CategoryID        string    `firestore:"categoryId"`
	Size              string    `firestore:"size"`
	Brand             string    `firestore:"brand"`
	Condition         string    `firestore:"condition"`
	Status            string    `firestore:"status"`
	ModerationComment *string   `firestore:"moderationComment"`
	SellerID          string    `firestore:"sellerId"`
	Images            []string  `firestore:"images"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

func newProductDoc(p domain.Product) productDoc {
	return productDoc{
		ID:                p.ID,
		Title:             p.Title,
		Description:       p.Description,
		Price:             p.Price,
		CategoryID:        p.CategoryID,
		Size:              p.Size,
		Brand:             p.Brand,
		Condition:         string(p.Condition),
		Status:            string(p.Status),
		ModerationComment: p.ModerationComment,
		SellerID:          p.SellerID,
		Images:            append([]string(nil), p.Images...),
		CreatedAt:         p.CreatedAt.UTC(),
		UpdatedAt:         p.UpdatedAt.UTC(),
	}
}

func (d productDoc) toDomain() domain.Product {
	return domain.Product{
		ID:                d.ID,
		Title:             d.Title,
		Description:       d.Description,
		Price:             d.Price,
		CategoryID:        d.CategoryID,
		Size:              d.Size,
		Brand:             d.Brand,
		Condition:         domain.ProductCondition(d.Condition),
		Status:            domain.ProductStatus(d.Status),
		ModerationComment: d.ModerationComment,
		SellerID:          d.SellerID,
		Images:            d.Images,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
}

type orderDoc struct {
	ID              string     `firestore:"id"`
	ProductID       string     `firestore:"productId"`
	BuyerID         string     `firestore:"buyerId"`
	SellerID        string     `firestore:"sellerId"`
	TotalPrice      float64    `firestore:"totalPrice"`
	ShippingAddress string     `firestore:"shippingAddress"`
	PickupAddress   *string    `firestore:"pickupAddress"`
	Status          string     `firestore:"status"`
	CreatedAt       time.Time  `firestore:"createdAt"`
	UpdatedAt       time.Time  `firestore:"updatedAt"`
	DeliveredAt     *time.Time `firestore:"deliveredAt"`
}

func newOrderDoc(o domain.Order) orderDoc {
	return orderDoc{
		ID:              o.ID,
		ProductID:       o.ProductID,
		BuyerID:         o.BuyerID,
		SellerID:        o.SellerID,
		TotalPrice:      o.TotalPrice,
		ShippingAddress: o.ShippingAddress,
		PickupAddress:   o.PickupAddress,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
		DeliveredAt:     o.DeliveredAt,
	}
}

func (d orderDoc) toDomain() domain.Order {
	return domain.Order{
		ID:              d.ID,
		ProductID:       d.ProductID,
		BuyerID:         d.BuyerID,
		SellerID:        d.SellerID,
		TotalPrice:      d.TotalPrice,
		ShippingAddress: d.ShippingAddress,
		PickupAddress:   d.PickupAddress,
		Status:          domain.OrderStatus(d.Status),
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
		DeliveredAt:     d.DeliveredAt,
	}
}

type conversationDoc struct {
	ID            string    `firestore:"id"`
	ProductID     string    `firestore:"productId"`
	BuyerID       string    `firestore:"buyerId"`
	SellerID      string    `firestore:"sellerId"`
	LastMessageAt time.Time `firestore:"lastMessageAt"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

func (d conversationDoc) toDomain() domain.Conversation {
	return domain.Conversation{
		ID:            d.ID,
		ProductID:     d.ProductID,
		BuyerID:       d.BuyerID,
		SellerID:      d.SellerID,
		LastMessageAt: d.LastMessageAt.UTC(),
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

// conversationKeyDoc reserves a (product, buyer, seller) triple. Its creation is what makes
// the triple unique.
type conversationKeyDoc struct {
	ConversationID string `firestore:"conversationId"`
}

type messageDoc struct {
	ID             string    `firestore:"id"`
	ConversationID string    `firestore:"conversationId"`
	SenderID       string    `firestore:"senderId"`
	Content        string    `firestore:"content"`
	IsRead         bool      `firestore:"isRead"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

func (d messageDoc) toDomain() domain.Message {
	return domain.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Content:        d.Content,
		IsRead:         d.IsRead,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

type favoriteDoc struct {
	ID        string    `firestore:"id"`
	UserID    string    `firestore:"userId"`
	ProductID string    `firestore:"productId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (d favoriteDoc) toDomain() domain.Favorite {
	return domain.Favorite{ID: d.ID, UserID: d.UserID, ProductID: d.ProductID, CreatedAt: d.CreatedAt.UTC()}
}

type addressDoc struct {
	ID        string    `firestore:"id"`
	UserID    string    `firestore:"userId"`
	Label     string    `firestore:"label"`
	Street    string    `firestore:"street"`
	City      string    `firestore:"city"`
	Postal    string    `firestore:"postal"`
	Country   string    `firestore:"country"`
	IsDefault bool      `firestore:"isDefault"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newAddressDoc(a domain.Address) addressDoc {
	return addressDoc{
		ID:        a.ID,
		UserID:    a.UserID,
		Label:     a.Label,
		Street:    a.Street,
		City:      a.City,
		Postal:    a.Postal,
		Country:   a.Country,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
}

func (d addressDoc) toDomain() domain.Address {
	return domain.Address{
		ID:        d.ID,
		UserID:    d.UserID,
		Label:     d.Label,
		Street:    d.Street,
		City:      d.City,
		Postal:    d.Postal,
		Country:   d.Country,
		IsDefault: d.IsDefault,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type userDoc struct {
	ID        string    `firestore:"id"`
	FirstName string    `firestore:"firstName"`
	LastName  string    `firestore:"lastName"`
	Phone     string    `firestore:"phone"`
	AvatarURL string    `firestore:"avatarUrl"`
	Bio       string    `firestore:"bio"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newUserDoc(u domain.UserProfile) userDoc {
	return userDoc{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
}

func (d userDoc) toDomain() domain.UserProfile {
	return domain.UserProfile{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Phone:     d.Phone,
		AvatarURL: d.AvatarURL,
		Bio:       d.Bio,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type reviewDoc struct {
	ID        string    `firestore:"id"`
	ProductID string    `firestore:"productId"`
	UserID    string    `firestore:"userId"`
	Rating    int       `firestore:"rating"`
	Comment   string    `firestore:"comment"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (d reviewDoc) toDomain() domain.Review {
	return domain.Review{ID: d.ID, ProductID: d.ProductID, UserID: d.UserID, Rating: d.Rating, Comment: d.Comment, CreatedAt: d.CreatedAt.UTC()}
}

type commentDoc struct {
	ID        string    `firestore:"id"`
	ProductID string    `firestore:"productId"`
	UserID    string    `firestore:"userId"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (d commentDoc) toDomain() domain.Comment {
	return domain.Comment{ID: d.ID, ProductID: d.ProductID, UserID: d.UserID, Content: d.Content, CreatedAt: d.CreatedAt.UTC()}
}
