package community

import (
	"context"
	"fmt"

	"github.com/circlehq/circle-go/internal/cache"
	"github.com/circlehq/circle-go/internal/connection"
	"github.com/circlehq/circle-go/internal/infrastructure/logging"
	"github.com/circlehq/circle-go/internal/infrastructure/resilience"
)

var (
	scopeMessageThreads = cache.Scope{Domain: "messages", Resource: "threads"}
	scopeMessageList    = cache.Scope{Domain: "messages", Resource: "list"}
)

// Messaging serves conversations and direct messages.
type Messaging struct {
	conns  *connection.Manager
	cache  *cache.Manager
	calls  calls
	logger *logging.Logger
}

// NewMessaging creates the messaging service.
func NewMessaging(conns *connection.Manager, cacheMgr *cache.Manager, cfg Config, logger *logging.Logger) *Messaging {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Messaging{
		conns:  conns,
		cache:  cacheMgr,
		calls:  newCalls("messaging", cfg, logger),
		logger: logger,
	}
}

// Breaker exposes the service's circuit breaker for observability.
func (s *Messaging) Breaker() *resilience.Breaker {
	return s.calls.breaker
}

// ListConversations returns a user's threads, most recently active first.
func (s *Messaging) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	key := scopeMessageThreads.Key(userID)

	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.calls.run(ctx, "list_conversations", func(ctx context.Context) (interface{}, error) {
			var threads []Conversation
			err := s.conns.GetClient().RPC(ctx, "conversations_for_user",
				map[string]string{"user_id": userID}, &threads)
			return threads, err
		})
	}, nil)
	if err != nil {
		return nil, err
	}

	threads, ok := v.([]Conversation)
	if !ok {
		return nil, fmt.Errorf("messaging: unexpected cached type %T", v)
	}
	return threads, nil
}

// ListMessages returns a conversation's messages, oldest-first.
func (s *Messaging) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	key := scopeMessageList.Key(conversationID)

	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.calls.run(ctx, "list_messages", func(ctx context.Context) (interface{}, error) {
			var messages []Message
			err := s.conns.GetClient().From("messages").
				Eq("conversation_id", conversationID).
				Order("created_at", false).
				Select(ctx, &messages)
			return messages, err
		})
	}, nil)
	if err != nil {
		return nil, err
	}

	messages, ok := v.([]Message)
	if !ok {
		return nil, fmt.Errorf("messaging: unexpected cached type %T", v)
	}
	return messages, nil
}

// Send writes a message and invalidates the conversation's cache.
func (s *Messaging) Send(ctx context.Context, conversationID, senderID, body string) (*Message, error) {
	v, err := s.calls.run(ctx, "send", func(ctx context.Context) (interface{}, error) {
		var created []Message
		err := s.conns.GetClient().From("messages").Insert(ctx, map[string]interface{}{
			"conversation_id": conversationID,
			"sender_id":       senderID,
			"body":            body,
		}, &created)
		if err != nil {
			return nil, err
		}
		if len(created) == 0 {
			return nil, fmt.Errorf("messaging: send returned no representation")
		}
		return created[0], nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(scopeMessageList.Key(conversationID))
	s.cache.Invalidate(scopeMessageThreads.Prefix())
	msg := v.(Message)
	return &msg, nil
}
