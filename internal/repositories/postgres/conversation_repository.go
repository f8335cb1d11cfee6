package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	domain "github.com/friperie/api/internal/domain"
	ppostgres "github.com/friperie/api/internal/platform/postgres"
)

// ConversationRepository relies on the unique (product_id, buyer_id, seller_id) index.
type ConversationRepository struct {
	db *bun.DB
}

func (r *ConversationRepository) FindByKey(ctx context.Context, key domain.ConversationKey) (domain.Conversation, error) {
	var row conversationRow
	err := r.db.NewSelect().Model(&row).
		Where("product_id = ?", key.ProductID).
		Where("buyer_id = ?", key.BuyerID).
		Where("seller_id = ?", key.SellerID).
		Scan(ctx)
	return conversationResult(row, err, "conversations.findByKey")
}

func (r *ConversationRepository) Create(ctx context.Context, c domain.Conversation) error {
	_, err := r.db.NewInsert().Model(&conversationRow{
		ID:            c.ID,
		ProductID:     c.ProductID,
		BuyerID:       c.BuyerID,
		SellerID:      c.SellerID,
		LastMessageAt: c.LastMessageAt.UTC(),
		CreatedAt:     c.CreatedAt.UTC(),
	}).Exec(ctx)
	return ppostgres.WrapError("conversations.create", err)
}

func (r *ConversationRepository) FindByID(ctx context.Context, conversationID string) (domain.Conversation, error) {
	var row conversationRow
	err := r.db.NewSelect().Model(&row).Where("id = ?", conversationID).Scan(ctx)
	return conversationResult(row, err, "conversations.get")
}

func (r *ConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var rows []conversationRow
	err := r.db.NewSelect().Model(&rows).
		WhereOr("buyer_id = ?", userID).
		WhereOr("seller_id = ?", userID).
		Order("last_message_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("conversations.list", err)
	}
	out := make([]domain.Conversation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func conversationResult(row conversationRow, err error, op string) (domain.Conversation, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conversation{}, ppostgres.NotFound(op, "conversation")
	}
	if err != nil {
		return domain.Conversation{}, ppostgres.WrapError(op, err)
	}
	return row.toDomain(), nil
}

// MessageRepository stores chat messages.
type MessageRepository struct {
	db *bun.DB
}

// Append inserts the message and advances last_message_at, never moving it backwards.
func (r *MessageRepository) Append(ctx context.Context, message domain.Message) error {
	return ppostgres.RunInTx(ctx, r.db, "messages.append", func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*conversationRow)(nil)).
			Set("last_message_at = GREATEST(last_message_at, ?)", message.CreatedAt.UTC()).
			Where("id = ?", message.ConversationID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ppostgres.NotFound("messages.append", "conversation "+message.ConversationID)
		}
		_, err = tx.NewInsert().Model(&messageRow{
			ID:             message.ID,
			ConversationID: message.ConversationID,
			SenderID:       message.SenderID,
			Content:        message.Content,
			IsRead:         message.IsRead,
			CreatedAt:      message.CreatedAt.UTC(),
		}).Exec(ctx)
		return err
	})
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var rows []messageRow
	err := r.db.NewSelect().Model(&rows).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("messages.list", err)
	}
	out := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// MarkRead is a single UPDATE so concurrent readers cannot double count.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	res, err := r.db.NewUpdate().Model((*messageRow)(nil)).
		Set("is_read = TRUE").
		Where("conversation_id = ?", conversationID).
		Where("sender_id <> ?", readerID).
		Where("NOT is_read").
		Exec(ctx)
	if err != nil {
		return 0, ppostgres.WrapError("messages.markRead", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ppostgres.WrapError("messages.markRead", err)
	}
	return int(n), nil
}
