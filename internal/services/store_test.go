package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/repositories"
)

type testRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *testRepoError) Error() string       { return e.msg }
func (e *testRepoError) IsNotFound() bool    { return e.notFound }
func (e *testRepoError) IsConflict() bool    { return e.conflict }
func (e *testRepoError) IsUnavailable() bool { return e.unavailable }

func errNotFound(what string) error { return &testRepoError{msg: what + " not found", notFound: true} }
func errConflict(what string) error { return &testRepoError{msg: what + " conflict", conflict: true} }

// memoryStore serialises every operation behind one mutex, which gives each repository call the
// isolation of a store transaction.
type memoryStore struct {
	mu            sync.Mutex
	categories    []domain.Category
	products      map[string]domain.Product
	orders        map[string]domain.Order
	conversations map[string]domain.Conversation
	messages      []domain.Message
	favorites     []domain.Favorite
	addresses     map[string][]domain.Address
	users         map[string]domain.UserProfile
	reviews       []domain.Review
	comments      []domain.Comment
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products:      map[string]domain.Product{},
		orders:        map[string]domain.Order{},
		conversations: map[string]domain.Conversation{},
		addresses:     map[string][]domain.Address{},
		users:         map[string]domain.UserProfile{},
	}
}

func (m *memoryStore) putProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *memoryStore) product(id string) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id]
}

type memCategories struct{ *memoryStore }

func (r memCategories) ListAll(context.Context) ([]domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.categories), nil
}

func (r memCategories) Upsert(_ context.Context, categories []domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories = append(r.categories, categories...)
	return nil
}

type memProducts struct{ *memoryStore }

func (r memProducts) Insert(_ context.Context, p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		return errConflict("product")
	}
	r.products[p.ID] = p
	return nil
}

func (r memProducts) FindByID(_ context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, errNotFound("product")
	}
	return p, nil
}

func (r memProducts) Mutate(_ context.Context, id string, fn repositories.ProductMutator) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, errNotFound("product")
	}
	next, err := fn(p)
	if err != nil {
		return domain.Product{}, err
	}
	r.products[id] = next
	return next, nil
}

func (r memProducts) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return errNotFound("product")
	}
	delete(r.products, id)
	return nil
}

func (r memProducts) Search(_ context.Context, filter domain.ProductFilter) (domain.CursorPage[domain.Product], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, p := range r.products {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, p.Status) {
			continue
		}
		if len(filter.CategoryIDs) > 0 && !slices.Contains(filter.CategoryIDs, p.CategoryID) {
			continue
		}
		if filter.SellerID != "" && p.SellerID != filter.SellerID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.SortBy == domain.ProductSortPrice {
			if filter.Order == domain.SortAsc {
				return out[i].Price < out[j].Price
			}
			return out[i].Price > out[j].Price
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return domain.CursorPage[domain.Product]{Items: out}, nil
}

func (r memProducts) FindByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memOrders struct{ *memoryStore }

func (r memOrders) Place(_ context.Context, productID string, fn repositories.PlaceFunc) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return domain.Order{}, errNotFound("product")
	}
	order, product, err := fn(p)
	if err != nil {
		return domain.Order{}, err
	}
	r.orders[order.ID] = order
	r.products[product.ID] = product
	return order, nil
}

func (r memOrders) Transition(_ context.Context, orderID string, fn repositories.TransitionFunc) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, errNotFound("order")
	}
	p, ok := r.products[o.ProductID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, o.ProductID)
	}
	order, product, err := fn(o, p)
	if err != nil {
		return domain.Order{}, err
	}
	r.orders[order.ID] = order
	r.products[product.ID] = product
	return order, nil
}

func (r memOrders) FindByID(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, errNotFound("order")
	}
	return o, nil
}

func (r memOrders) ListByParticipant(_ context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if (filter.Role == domain.OrderRoleSeller && o.SellerID == filter.UserID) ||
			(filter.Role == domain.OrderRoleBuyer && o.BuyerID == filter.UserID) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memConversations struct{ *memoryStore }

func (r memConversations) FindByKey(_ context.Context, key domain.ConversationKey) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conversations {
		if c.Key() == key {
			return c, nil
		}
	}
	return domain.Conversation{}, errNotFound("conversation")
}

func (r memConversations) Create(_ context.Context, c domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.conversations {
		if existing.Key() == c.Key() {
			return errConflict("conversation")
		}
	}
	r.conversations[c.ID] = c
	return nil
}

func (r memConversations) FindByID(_ context.Context, id string) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return domain.Conversation{}, errNotFound("conversation")
	}
	return c, nil
}

func (r memConversations) ListByParticipant(_ context.Context, userID string) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Conversation
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

type memMessages struct{ *memoryStore }

func (r memMessages) Append(_ context.Context, m domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[m.ConversationID]
	if !ok {
		return errNotFound("conversation")
	}
	c.LastMessageAt = m.CreatedAt
	r.conversations[c.ID] = c
	r.messages = append(r.messages, m)
	return nil
}

func (r memMessages) ListByConversation(_ context.Context, id string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.ConversationID == id {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memMessages) MarkRead(_ context.Context, id, readerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for i, m := range r.messages {
		if m.ConversationID == id && m.SenderID != readerID && !m.IsRead {
			r.messages[i].IsRead = true
			count++
		}
	}
	return count, nil
}

type memFavorites struct{ *memoryStore }

func (r memFavorites) Find(_ context.Context, userID, productID string) (domain.Favorite, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.favorites {
		if f.UserID == userID && f.ProductID == productID {
			return f, true, nil
		}
	}
	return domain.Favorite{}, false, nil
}

func (r memFavorites) Insert(_ context.Context, f domain.Favorite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.favorites {
		if existing.UserID == f.UserID && existing.ProductID == f.ProductID {
			return errConflict("favorite")
		}
	}
	r.favorites = append(r.favorites, f)
	return nil
}

func (r memFavorites) Delete(_ context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.favorites)
	r.favorites = slices.DeleteFunc(r.favorites, func(f domain.Favorite) bool {
		return f.UserID == userID && f.ProductID == productID
	})
	if len(r.favorites) == before {
		return errNotFound("favorite")
	}
	return nil
}

func (r memFavorites) ListByUser(_ context.Context, userID string) ([]domain.Favorite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Favorite
	for i := len(r.favorites) - 1; i >= 0; i-- {
		if r.favorites[i].UserID == userID {
			out = append(out, r.favorites[i])
		}
	}
	return out, nil
}

func (r memFavorites) FavoritedAmong(_ context.Context, userID string, ids []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for _, f := range r.favorites {
		if f.UserID == userID && slices.Contains(ids, f.ProductID) {
			out[f.ProductID] = true
		}
	}
	return out, nil
}

type memAddresses struct{ *memoryStore }

func (r memAddresses) List(_ context.Context, userID string) ([]domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.addresses[userID]), nil
}

func (r memAddresses) Replace(_ context.Context, userID string, fn func([]domain.Address) ([]domain.Address, error)) ([]domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := fn(slices.Clone(r.addresses[userID]))
	if err != nil {
		return nil, err
	}
	r.addresses[userID] = next
	return slices.Clone(next), nil
}

// recordingScheduler runs tasks inline and remembers their names.
type memUsers struct{ *memoryStore }

func (r memUsers) FindByID(_ context.Context, id string) (domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.UserProfile{}, errNotFound("user")
	}
	return u, nil
}

func (r memUsers) FindByIDs(_ context.Context, ids []string) ([]domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UserProfile
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memUsers) Upsert(_ context.Context, u domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	return nil
}

type memReviews struct{ *memoryStore }

func (r memReviews) Insert(_ context.Context, review domain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.ProductID == review.ProductID && existing.UserID == review.UserID {
			return errConflict("review")
		}
	}
	r.reviews = append(r.reviews, review)
	return nil
}

func (r memReviews) ListByProduct(_ context.Context, productID string) ([]domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Review
	for _, review := range r.reviews {
		if review.ProductID == productID {
			out = append(out, review)
		}
	}
	return out, nil
}

type memComments struct{ *memoryStore }

func (r memComments) Insert(_ context.Context, c domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments = append(r.comments, c)
	return nil
}

func (r memComments) ListByProduct(_ context.Context, productID string) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.comments {
		if c.ProductID == productID {
			out = append(out, c)
		}
	}
	return out, nil
}

type recordingScheduler struct {
	mu     sync.Mutex
	names  []string
	errs   []error
	reject bool
}

func (s *recordingScheduler) Enqueue(ctx context.Context, name string, fn func(context.Context) error) bool {
	if s.reject {
		return false
	}
	err := fn(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.errs = append(s.errs, err)
	return true
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%03d", prefix, n)
	}
}
