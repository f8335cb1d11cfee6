package postgres

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/textutil"
)

type categoryRow struct {
	bun.BaseModel `bun:"table:categories"`

	ID       string  `bun:"id,pk"`
	Name     string  `bun:"name,notnull"`
	Slug     string  `bun:"slug,notnull"`
	Level    int     `bun:"level,notnull"`
	ParentID *string `bun:"parent_id"`
	SizeType string  `bun:"size_type,notnull,default:'NONE'"`
}

func (r categoryRow) toDomain() domain.Category {
	return domain.Category{ID: r.ID, Name: r.Name, Slug: r.Slug, Level: r.Level, ParentID: r.ParentID, SizeType: domain.SizeType(r.SizeType)}
}

type productRow struct {
	bun.BaseModel `bun:"table:products"`

	ID                string    `bun:"id,pk"`
	Title             string    `bun:"title,notnull"`
	Description       string    `bun:"description,notnull"`
	Price             float64   `bun:"price,notnull"`
	CategoryID        string    `bun:"category_id,notnull"`
	Size              string    `bun:"size,notnull"`
	Brand             string    `bun:"brand,notnull"`
	Condition         string    `bun:"condition,notnull"`
	Status            string    `bun:"status,notnull"`
	ModerationComment *string   `bun:"moderation_comment"`
	SellerID          string    `bun:"seller_id,notnull"`
	Images            []string  `bun:"images,array"`
	BrandKey          string    `bun:"brand_key,notnull"`
	SearchText        string    `bun:"search_text,notnull"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
	UpdatedAt         time.Time `bun:"updated_at,notnull"`
}

func newProductRow(p domain.Product) *productRow {
	return &productRow{
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
		Images:            append([]string{}, p.Images...),
		BrandKey:          textutil.Fold(p.Brand),
		SearchText:        textutil.Fold(strings.Join([]string{p.Title, p.Brand, p.Description}, " ")),
		CreatedAt:         p.CreatedAt.UTC(),
		UpdatedAt:         p.UpdatedAt.UTC(),
	}
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:                r.ID,
		Title:             r.Title,
		Description:       r.Description,
		Price:             r.Price,
		CategoryID:        r.CategoryID,
		Size:              r.Size,
		Brand:             r.Brand,
		Condition:         domain.ProductCondition(r.Condition),
		Status:            domain.ProductStatus(r.Status),
		ModerationComment: r.ModerationComment,
		SellerID:          r.SellerID,
		Images:            r.Images,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type orderRow struct {
	bun.BaseModel `bun:"table:orders"`

	ID              string     `bun:"id,pk"`
	ProductID       string     `bun:"product_id,notnull"`
	BuyerID         string     `bun:"buyer_id,notnull"`
	SellerID        string     `bun:"seller_id,notnull"`
	TotalPrice      float64    `bun:"total_price,notnull"`
	ShippingAddress string     `bun:"shipping_address,notnull"`
	PickupAddress   *string    `bun:"pickup_address"`
	Status          string     `bun:"status,notnull"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull"`
	DeliveredAt     *time.Time `bun:"delivered_at"`
}

func newOrderRow(o domain.Order) *orderRow {
	return &orderRow{
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

func (r orderRow) toDomain() domain.Order {
	return domain.Order{
		ID:              r.ID,
		ProductID:       r.ProductID,
		BuyerID:         r.BuyerID,
		SellerID:        r.SellerID,
		TotalPrice:      r.TotalPrice,
		ShippingAddress: r.ShippingAddress,
		PickupAddress:   r.PickupAddress,
		Status:          domain.OrderStatus(r.Status),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		DeliveredAt:     r.DeliveredAt,
	}
}

type conversationRow struct {
	bun.BaseModel `bun:"table:conversations"`

	ID            string    `bun:"id,pk"`
	ProductID     string    `bun:"product_id,notnull"`
	BuyerID       string    `bun:"buyer_id,notnull"`
	SellerID      string    `bun:"seller_id,notnull"`
	LastMessageAt time.Time `bun:"last_message_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func (r conversationRow) toDomain() domain.Conversation {
	return domain.Conversation{
		ID:            r.ID,
		ProductID:     r.ProductID,
		BuyerID:       r.BuyerID,
		SellerID:      r.SellerID,
		LastMessageAt: r.LastMessageAt.UTC(),
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type messageRow struct {
	bun.BaseModel `bun:"table:messages"`

	ID             string    `bun:"id,pk"`
	ConversationID string    `bun:"conversation_id,notnull"`
	SenderID       string    `bun:"sender_id,notnull"`
	Content        string    `bun:"content,notnull"`
	IsRead         bool      `bun:"is_read,notnull,default:false"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

func (r messageRow) toDomain() domain.Message {
	return domain.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		Content:        r.Content,
		IsRead:         r.IsRead,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type favoriteRow struct {
	bun.BaseModel `bun:"table:favorites"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	ProductID string    `bun:"product_id,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r favoriteRow) toDomain() domain.Favorite {
	return domain.Favorite{ID: r.ID, UserID: r.UserID, ProductID: r.ProductID, CreatedAt: r.CreatedAt.UTC()}
}

type addressRow struct {
	bun.BaseModel `bun:"table:addresses"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	Label     string    `bun:"label,notnull"`
	Street    string    `bun:"street,notnull"`
	City      string    `bun:"city,notnull"`
	Postal    string    `bun:"postal,notnull"`
	Country   string    `bun:"country,notnull"`
	IsDefault bool      `bun:"is_default,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func newAddressRow(a domain.Address) addressRow {
	return addressRow{
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

func (r addressRow) toDomain() domain.Address {
	return domain.Address{
		ID:        r.ID,
		UserID:    r.UserID,
		Label:     r.Label,
		Street:    r.Street,
		City:      r.City,
		Postal:    r.Postal,
		Country:   r.Country,
		IsDefault: r.IsDefault,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID        string    `bun:"id,pk"`
	FirstName string    `bun:"first_name,notnull"`
	LastName  string    `bun:"last_name,notnull"`
	Phone     string    `bun:"phone,notnull"`
	AvatarURL string    `bun:"avatar_url,notnull"`
	Bio       string    `bun:"bio,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (r userRow) toDomain() domain.UserProfile {
	return domain.UserProfile{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		AvatarURL: r.AvatarURL,
		Bio:       r.Bio,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type reviewRow struct {
	bun.BaseModel `bun:"table:reviews"`

	ID        string    `bun:"id,pk"`
	ProductID string    `bun:"product_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	Rating    int       `bun:"rating,notnull"`
	Comment   string    `bun:"comment,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r reviewRow) toDomain() domain.Review {
	return domain.Review{ID: r.ID, ProductID: r.ProductID, UserID: r.UserID, Rating: r.Rating, Comment: r.Comment, CreatedAt: r.CreatedAt.UTC()}
}

type commentRow struct {
	bun.BaseModel `bun:"table:comments"`

	ID        string    `bun:"id,pk"`
	ProductID string    `bun:"product_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	Content   string    `bun:"content,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r commentRow) toDomain() domain.Comment {
	return domain.Comment{ID: r.ID, ProductID: r.ProductID, UserID: r.UserID, Content: r.Content, CreatedAt: r.CreatedAt.UTC()}
}
