package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/repositories"
)

const (
	// EventNewMessage is the broadcast type emitted after a message is stored.
	EventNewMessage = "new_message"

	maxMessageLength = 2000
)

// ConversationServiceDeps bundles collaborators required to construct the conversation service.
type ConversationServiceDeps struct {
	Conversations repositories.ConversationRepository
	Messages      repositories.MessageRepository
	Products      repositories.ProductRepository
	Broadcaster   MessageBroadcaster
	Tasks         TaskScheduler
	Sanitizer     TextSanitizer
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        Logger
}

type conversationService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	products      repositories.ProductRepository
	broadcaster   MessageBroadcaster
	tasks         TaskScheduler
	sanitizer     TextSanitizer
	clock         func() time.Time
	newID         func() string
	logger        Logger
}

// NewConversationService wires dependencies into a ConversationService implementation.
func NewConversationService(deps ConversationServiceDeps) (ConversationService, error) {
	if deps.Conversations == nil {
		return nil, errors.New("conversation service: conversation repository is required")
	}
	if deps.Messages == nil {
		return nil, errors.New("conversation service: message repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("conversation service: product repository is required")
	}
	logger := loggerOrNoop(deps.Logger)
	return &conversationService{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		products:      deps.Products,
		broadcaster:   deps.Broadcaster,
		tasks:         schedulerOrInline(deps.Tasks, logger),
		sanitizer:     sanitizerOrPassthrough(deps.Sanitizer),
		clock:         utcClock(deps.Clock),
		newID:         idGenerator(deps.IDGenerator),
		logger:        logger,
	}, nil
}

func (s *conversationService) FindOrCreate(ctx context.Context, productID, callerID string) (Conversation, error) {
	pid, err := requireID(productID, "product id")
	if err != nil {
		return Conversation{}, err
	}
	caller, err := requireID(callerID, "caller id")
	if err != nil {
		return Conversation{}, err
	}

	product, err := s.products.FindByID(ctx, pid)
	if err != nil {
		return Conversation{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	if product.SellerID == caller {
		return Conversation{}, fmt.Errorf("%w: cannot open a conversation on your own product", domain.ErrSelfReference)
	}

	key := domain.ConversationKey{ProductID: pid, BuyerID: caller, SellerID: product.SellerID}
	existing, err := s.conversations.FindByKey(ctx, key)
	switch {
	case err == nil:
		return existing, nil
	case !isRepoNotFound(err):
		return Conversation{}, mapRepositoryError(err, domain.ErrConversationNotFound)
	}

	now := s.clock()
	conversation := Conversation{
		ID:            conversationIDPrefix + s.newID(),
		ProductID:     pid,
		BuyerID:       caller,
		SellerID:      product.SellerID,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		if !isRepoConflict(err) {
			return Conversation{}, mapRepositoryError(err, domain.ErrConversationNotFound)
		}
		// Another request created the thread first; both callers must see the same one.
		winner, lookupErr := s.conversations.FindByKey(ctx, key)
		if lookupErr != nil {
			return Conversation{}, mapRepositoryError(lookupErr, domain.ErrConversationNotFound)
		}
		return winner, nil
	}
	s.logger(ctx, "conversation.created", map[string]any{"conversation": conversation.ID, "product": pid, "buyer": caller})
	return conversation, nil
}

func (s *conversationService) List(ctx context.Context, userID string) ([]Conversation, error) {
	user, err := requireID(userID, "user id")
	if err != nil {
		return nil, err
	}
	conversations, err := s.conversations.ListByParticipant(ctx, user)
	if err != nil {
		return nil, mapRepositoryError(err, domain.ErrConversationNotFound)
	}
	return conversations, nil
}

func (s *conversationService) Get(ctx context.Context, conversationID, callerID string) (Conversation, error) {
	id, err := requireID(conversationID, "conversation id")
	if err != nil {
		return Conversation{}, err
	}
	caller, err := requireID(callerID, "caller id")
	if err != nil {
		return Conversation{}, err
	}
	conversation, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		return Conversation{}, mapRepositoryError(err, domain.ErrConversationNotFound)
	}
	if !conversation.HasParticipant(caller) {
		return Conversation{}, fmt.Errorf("%w: %s is not a participant of conversation %s", domain.ErrForbidden, caller, id)
	}
	return conversation, nil
}

func (s *conversationService) Messages(ctx context.Context, conversationID, callerID string) ([]Message, error) {
	conversation, err := s.Get(ctx, conversationID, callerID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByConversation(ctx, conversation.ID)
	if err != nil {
		return nil, mapRepositoryError(err, domain.ErrConversationNotFound)
	}
	return messages, nil
}

func (s *conversationService) SendMessage(ctx context.Context, cmd SendMessageCommand) (Message, error) {
	conversation, err := s.Get(ctx, cmd.ConversationID, cmd.SenderID)
	if err != nil {
		return Message{}, err
	}
	content := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Content))
	if content == "" {
		return Message{}, fmt.Errorf("%w: message content is required", domain.ErrInvalidInput)
	}
	if len([]rune(content)) > maxMessageLength {
		return Message{}, fmt.Errorf("%w: message exceeds %d characters", domain.ErrInvalidInput, maxMessageLength)
	}

	message := Message{
		ID:             messageIDPrefix + s.newID(),
		ConversationID: conversation.ID,
		SenderID:       strings.TrimSpace(cmd.SenderID),
		Content:        content,
		CreatedAt:      s.clock(),
	}
	if err := s.messages.Append(ctx, message); err != nil {
		return Message{}, mapRepositoryError(err, domain.ErrConversationNotFound)
	}

	s.broadcast(ctx, conversation, message)
	return message, nil
}

func (s *conversationService) MarkAsRead(ctx context.Context, conversationID, callerID string) (int, error) {
	conversation, err := s.Get(ctx, conversationID, callerID)
	if err != nil {
		return 0, err
	}
	count, err := s.messages.MarkRead(ctx, conversation.ID, strings.TrimSpace(callerID))
	if err != nil {
		return 0, mapRepositoryError(err, domain.ErrConversationNotFound)
	}
	return count, nil
}

func (s *conversationService) broadcast(ctx context.Context, conversation Conversation, message Message) {
	if s.broadcaster == nil {
		return
	}
	event := MessageEvent{
		Type:           EventNewMessage,
		ConversationID: conversation.ID,
		MessageID:      message.ID,
		SenderID:       message.SenderID,
		Content:        message.Content,
		Recipients:     []string{conversation.BuyerID, conversation.SellerID},
		CreatedAt:      message.CreatedAt,
	}
	accepted := s.tasks.Enqueue(ctx, "conversation.broadcast", func(taskCtx context.Context) error {
		return s.broadcaster.Broadcast(taskCtx, event)
	})
	if !accepted {
		s.logger(ctx, "conversation.broadcast.dropped", map[string]any{"conversation": conversation.ID, "message": message.ID})
	}
}
