package handlers

import (
	"time"

	domain "github.com/friperie/api/internal/domain"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

type categoryPayload struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Slug     string            `json:"slug"`
	Level    int               `json:"level"`
	ParentID *string           `json:"parentId,omitempty"`
	SizeType string            `json:"sizeType,omitempty"`
	Children []categoryPayload `json:"children,omitempty"`
}

func buildCategoryPayload(c domain.Category) categoryPayload {
	return categoryPayload{ID: c.ID, Name: c.Name, Slug: c.Slug, Level: c.Level, ParentID: c.ParentID, SizeType: string(c.SizeType)}
}

func buildCategoryTree(nodes []domain.CategoryNode) []categoryPayload {
	out := make([]categoryPayload, 0, len(nodes))
	for _, node := range nodes {
		payload := buildCategoryPayload(node.Category)
		if len(node.Children) > 0 {
			payload.Children = buildCategoryTree(node.Children)
		}
		out = append(out, payload)
	}
	return out
}

type productPayload struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Price             float64  `json:"price"`
	CategoryID        string   `json:"categoryId"`
	Size              string   `json:"size,omitempty"`
	Brand             string   `json:"brand,omitempty"`
	Condition         string   `json:"condition"`
	Status            string   `json:"status"`
	ModerationComment *string  `json:"moderationComment,omitempty"`
	SellerID          string   `json:"sellerId"`
	Images            []string `json:"images"`
	IsFavorite        *bool    `json:"isFavorite,omitempty"`
	CreatedAt         string   `json:"createdAt"`
	UpdatedAt         string   `json:"updatedAt"`
}

type productDetailPayload struct {
	productPayload
	Reviews  []reviewPayload  `json:"reviews"`
	Comments []commentPayload `json:"comments"`
}

func buildProductPayload(p domain.Product) productPayload {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productPayload{
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
		Images:            images,
		CreatedAt:         formatTime(p.CreatedAt),
		UpdatedAt:         formatTime(p.UpdatedAt),
	}
}

func buildProductViewPayload(v domain.ProductView) productPayload {
	payload := buildProductPayload(v.Product)
	favorite := v.IsFavorite
	payload.IsFavorite = &favorite
	return payload
}

// buildProductDetailPayload renders a single product together with its feedback.
func buildProductDetailPayload(v domain.ProductView) productDetailPayload {
	reviews := make([]reviewPayload, len(v.Reviews))
	for i, review := range v.Reviews {
		reviews[i] = buildReviewPayload(review.Review)
		author := buildAuthorPayload(review.Author)
		reviews[i].Author = &author
	}
	comments := make([]commentPayload, len(v.Comments))
	for i, comment := range v.Comments {
		comments[i] = buildCommentPayload(comment.Comment)
		author := buildAuthorPayload(comment.Author)
		comments[i].Author = &author
	}
	return productDetailPayload{productPayload: buildProductViewPayload(v), Reviews: reviews, Comments: comments}
}

type authorPayload struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

func buildAuthorPayload(a domain.Author) authorPayload {
	return authorPayload{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName}
}

type reviewPayload struct {
	ID        string         `json:"id"`
	ProductID string         `json:"productId"`
	UserID    string         `json:"userId"`
	Rating    int            `json:"rating"`
	Comment   string         `json:"comment,omitempty"`
	Author    *authorPayload `json:"author,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

func buildReviewPayload(r domain.Review) reviewPayload {
	return reviewPayload{
		ID:        r.ID,
		ProductID: r.ProductID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: formatTime(r.CreatedAt),
	}
}

type commentPayload struct {
	ID        string         `json:"id"`
	ProductID string         `json:"productId"`
	UserID    string         `json:"userId"`
	Content   string         `json:"content"`
	Author    *authorPayload `json:"author,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

func buildCommentPayload(c domain.Comment) commentPayload {
	return commentPayload{
		ID:        c.ID,
		ProductID: c.ProductID,
		UserID:    c.UserID,
		Content:   c.Content,
		CreatedAt: formatTime(c.CreatedAt),
	}
}

type userProfilePayload struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Bio       string `json:"bio,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func buildUserProfilePayload(u domain.UserProfile) userProfilePayload {
	return userProfilePayload{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		CreatedAt: formatTime(u.CreatedAt),
		UpdatedAt: formatTime(u.UpdatedAt),
	}
}

type publicProfilePayload struct {
	ID        string           `json:"id"`
	FirstName string           `json:"firstName"`
	LastName  string           `json:"lastName"`
	AvatarURL string           `json:"avatarUrl,omitempty"`
	Bio       string           `json:"bio,omitempty"`
	CreatedAt string           `json:"createdAt,omitempty"`
	Listings  []productPayload `json:"listings"`
}

func buildPublicProfilePayload(p domain.PublicProfile) publicProfilePayload {
	return publicProfilePayload{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		AvatarURL: p.AvatarURL,
		Bio:       p.Bio,
		CreatedAt: formatTime(p.CreatedAt),
		Listings:  mapSlice(p.Listings, buildProductPayload),
	}
}

type orderPayload struct {
	ID              string  `json:"id"`
	ProductID       string  `json:"productId"`
	BuyerID         string  `json:"buyerId"`
	SellerID        string  `json:"sellerId"`
	TotalPrice      float64 `json:"totalPrice"`
	ShippingAddress string  `json:"shippingAddress"`
	PickupAddress   *string `json:"pickupAddress,omitempty"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
	DeliveredAt     string  `json:"deliveredAt,omitempty"`
}

func buildOrderPayload(o domain.Order) orderPayload {
	payload := orderPayload{
		ID:              o.ID,
		ProductID:       o.ProductID,
		BuyerID:         o.BuyerID,
		SellerID:        o.SellerID,
		TotalPrice:      o.TotalPrice,
		ShippingAddress: o.ShippingAddress,
		PickupAddress:   o.PickupAddress,
		Status:          string(o.Status),
		CreatedAt:       formatTime(o.CreatedAt),
		UpdatedAt:       formatTime(o.UpdatedAt),
	}
	if o.DeliveredAt != nil {
		payload.DeliveredAt = formatTime(*o.DeliveredAt)
	}
	return payload
}

type conversationPayload struct {
	ID            string `json:"id"`
	ProductID     string `json:"productId"`
	BuyerID       string `json:"buyerId"`
	SellerID      string `json:"sellerId"`
	LastMessageAt string `json:"lastMessageAt"`
	CreatedAt     string `json:"createdAt"`
}

func buildConversationPayload(c domain.Conversation) conversationPayload {
	return conversationPayload{
		ID:            c.ID,
		ProductID:     c.ProductID,
		BuyerID:       c.BuyerID,
		SellerID:      c.SellerID,
		LastMessageAt: formatTime(c.LastMessageAt),
		CreatedAt:     formatTime(c.CreatedAt),
	}
}

type messagePayload struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Content        string `json:"content"`
	IsRead         bool   `json:"isRead"`
	CreatedAt      string `json:"createdAt"`
}

func buildMessagePayload(m domain.Message) messagePayload {
	return messagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		IsRead:         m.IsRead,
		CreatedAt:      formatTime(m.CreatedAt),
	}
}

type addressPayload struct {
	ID        string `json:"id"`
	Label     string `json:"label,omitempty"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Postal    string `json:"postal"`
	Country   string `json:"country"`
	IsDefault bool   `json:"isDefault"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func buildAddressPayload(a domain.Address) addressPayload {
	return addressPayload{
		ID:        a.ID,
		Label:     a.Label,
		Street:    a.Street,
		City:      a.City,
		Postal:    a.Postal,
		Country:   a.Country,
		IsDefault: a.IsDefault,
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

func mapSlice[T, P any](items []T, build func(T) P) []P {
	out := make([]P, 0, len(items))
	for _, item := range items {
		out = append(out, build(item))
	}
	return out
}
