package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"

	domain "github.com/friperie/api/internal/domain"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
)

// ConversationRepository stores threads plus a key document per (product, buyer, seller) triple.
type ConversationRepository struct {
	provider      *pfirestore.Provider
	conversations pfirestore.Collection[conversationDoc]
	keys          pfirestore.Collection[conversationKeyDoc]
}

// NewConversationRepository binds the repository to provider.
func NewConversationRepository(provider *pfirestore.Provider) (*ConversationRepository, error) {
	if provider == nil {
		return nil, errors.New("conversation repository requires firestore provider")
	}
	return &ConversationRepository{
		provider:      provider,
		conversations: pfirestore.NewCollection[conversationDoc](provider, conversationsCollection),
		keys:          pfirestore.NewCollection[conversationKeyDoc](provider, conversationKeysCollection),
	}, nil
}

func conversationKeyID(key domain.ConversationKey) string {
	sum := sha256.Sum256([]byte(key.ProductID + "\x00" + key.BuyerID + "\x00" + key.SellerID))
	return hex.EncodeToString(sum[:16])
}

func (r *ConversationRepository) FindByKey(ctx context.Context, key domain.ConversationKey) (domain.Conversation, error) {
	pointer, err := r.keys.Get(ctx, conversationKeyID(key))
	if err != nil {
		return domain.Conversation{}, err
	}
	return r.FindByID(ctx, pointer.ConversationID)
}

// Create writes the key document and the conversation together. The key is created with
// Create semantics so a concurrent duplicate fails with AlreadyExists.
func (r *ConversationRepository) Create(ctx context.Context, conversation domain.Conversation) error {
	keyRef, err := r.keys.Doc(ctx, conversationKeyID(conversation.Key()))
	if err != nil {
		return err
	}
	convRef, err := r.conversations.Doc(ctx, conversation.ID)
	if err != nil {
		return err
	}
	return r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(keyRef, conversationKeyDoc{ConversationID: conversation.ID}); err != nil {
			return err
		}
		return tx.Create(convRef, conversationDoc{
			ID:            conversation.ID,
			ProductID:     conversation.ProductID,
			BuyerID:       conversation.BuyerID,
			SellerID:      conversation.SellerID,
			LastMessageAt: conversation.LastMessageAt.UTC(),
			CreatedAt:     conversation.CreatedAt.UTC(),
		})
	}, pfirestore.WithTxAttempts(1))
}

func (r *ConversationRepository) FindByID(ctx context.Context, conversationID string) (domain.Conversation, error) {
	doc, err := r.conversations.Get(ctx, conversationID)
	if err != nil {
		return domain.Conversation{}, err
	}
	return doc.toDomain(), nil
}

// ListByParticipant merges the buyer side and seller side queries, most recent activity first.
func (r *ConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var asBuyer, asSeller []conversationDoc
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		asBuyer, err = r.conversations.Query(gctx, func(q firestore.Query) firestore.Query {
			return q.Where("buyerId", "==", userID)
		})
		return err
	})
	g.Go(func() error {
		var err error
		asSeller, err = r.conversations.Query(gctx, func(q firestore.Query) firestore.Query {
			return q.Where("sellerId", "==", userID)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(asBuyer)+len(asSeller))
	out := make([]domain.Conversation, 0, len(asBuyer)+len(asSeller))
	for _, doc := range append(asBuyer, asSeller...) {
		if _, dup := seen[doc.ID]; dup {
			continue
		}
		seen[doc.ID] = struct{}{}
		out = append(out, doc.toDomain())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

// MessageRepository stores messages under conversations/{id}/messages.
type MessageRepository struct {
	provider *pfirestore.Provider
}

// NewMessageRepository binds the repository to provider.
func NewMessageRepository(provider *pfirestore.Provider) (*MessageRepository, error) {
	if provider == nil {
		return nil, errors.New("message repository requires firestore provider")
	}
	return &MessageRepository{provider: provider}, nil
}

func (r *MessageRepository) conversation(ctx context.Context, conversationID string) (*firestore.DocumentRef, error) {
	if conversationID == "" {
		return nil, errors.New("firestore: conversation id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(conversationsCollection).Doc(conversationID), nil
}

// Append creates the message and moves the parent's lastMessageAt forward in one transaction.
func (r *MessageRepository) Append(ctx context.Context, message domain.Message) error {
	convRef, err := r.conversation(ctx, message.ConversationID)
	if err != nil {
		return err
	}
	msgRef := convRef.Collection(messagesSubcollection).Doc(message.ID)
	return r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(convRef)
		if err != nil {
			return pfirestore.WrapError("conversations.get", err)
		}
		current, err := pfirestore.Decode[conversationDoc](snap)
		if err != nil {
			return err
		}
		if err := tx.Create(msgRef, messageDoc{
			ID:             message.ID,
			ConversationID: message.ConversationID,
			SenderID:       message.SenderID,
			Content:        message.Content,
			IsRead:         message.IsRead,
			CreatedAt:      message.CreatedAt.UTC(),
		}); err != nil {
			return err
		}
		if message.CreatedAt.After(current.LastMessageAt) {
			return tx.Update(convRef, []firestore.Update{{Path: "lastMessageAt", Value: message.CreatedAt.UTC()}})
		}
		return nil
	})
}

// ListByConversation returns messages in chronological order.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	convRef, err := r.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	iter := convRef.Collection(messagesSubcollection).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	docs, err := pfirestore.Collect[messageDoc](iter, "messages.list")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

// MarkRead flips unread messages authored by the other participant. The unread query is re-run
// inside the transaction so concurrent calls count each message once.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	convRef, err := r.conversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	unread := convRef.Collection(messagesSubcollection).Where("isRead", "==", false)
	var changed int
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		changed = 0
		snaps, err := tx.Documents(unread).GetAll()
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			doc, err := pfirestore.Decode[messageDoc](snap)
			if err != nil {
				return err
			}
			if doc.SenderID == readerID {
				continue
			}
			if err := tx.Update(snap.Ref, []firestore.Update{{Path: "isRead", Value: true}}); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}
