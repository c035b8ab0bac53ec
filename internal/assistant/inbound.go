package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopchat-core/internal/chats"
	"github.com/angelmondragon/shopchat-core/internal/customers"
	"github.com/angelmondragon/shopchat-core/internal/shops"
	"github.com/angelmondragon/shopchat-core/internal/tools"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/llm"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
	"github.com/angelmondragon/shopchat-core/pkg/messaging"
	"github.com/angelmondragon/shopchat-core/pkg/redis"
	"github.com/angelmondragon/shopchat-core/pkg/retry"
)

// InboundMessage is one event from the messaging platform. Echo is set when
// the page itself sent the text, i.e. a person from the shop replied by hand.
type InboundMessage struct {
	PageID     string `json:"page_id" validate:"required"`
	CustomerID string `json:"customer_id" validate:"required"`
	Text       string `json:"text" validate:"required,max=4000"`
	Echo       bool   `json:"echo"`
}

// InboundStatus says what happened to an inbound message.
type InboundStatus string

const (
	StatusReplied       InboundStatus = "replied"
	StatusPaused        InboundStatus = "paused"
	StatusHumanTakeover InboundStatus = "human_takeover"
	StatusRateLimited   InboundStatus = "rate_limited"
)

// InboundResult reports the handling of one inbound message.
type InboundResult struct {
	Status     InboundStatus `json:"status"`
	CustomerID uuid.UUID     `json:"customer_id"`
	Reply      string        `json:"reply,omitempty"`
	Outcome    Outcome       `json:"outcome,omitempty"`
}

type cartEnsurer interface {
	Get(ctx context.Context, shopID, customerID uuid.UUID) (*models.Cart, error)
}

type runner interface {
	Run(ctx context.Context, conv Conversation) Reply
}

// InboundParams groups the inbound service dependencies.
type InboundParams struct {
	Shops         shops.Repository
	Customers     customers.Repository
	Carts         cartEnsurer
	Chats         chats.Repository
	Orchestrator  runner
	Sender        messaging.Sender
	Limiter       redis.RateLimiter
	RateLimit     int
	RateWindow    time.Duration
	HistorySize   int
	PauseDuration time.Duration
	Retry         retry.Policy
	Logger        *logger.Logger
	Now           func() time.Time
}

// InboundService is the entry point for every chat message a shop receives.
type InboundService struct {
	shops         shops.Repository
	customers     customers.Repository
	carts         cartEnsurer
	chats         chats.Repository
	orchestrator  runner
	sender        messaging.Sender
	limiter       redis.RateLimiter
	rateLimit     int
	rateWindow    time.Duration
	historySize   int
	pauseDuration time.Duration
	retry         retry.Policy
	logg          *logger.Logger
	now           func() time.Time
}

func NewInboundService(params InboundParams) (*InboundService, error) {
	switch {
	case params.Shops == nil:
		return nil, fmt.Errorf("shops repository required")
	case params.Customers == nil:
		return nil, fmt.Errorf("customers repository required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart service required")
	case params.Chats == nil:
		return nil, fmt.Errorf("chat repository required")
	case params.Orchestrator == nil:
		return nil, fmt.Errorf("orchestrator required")
	case params.Sender == nil:
		return nil, fmt.Errorf("messaging sender required")
	}
	s := &InboundService{
		shops:         params.Shops,
		customers:     params.Customers,
		carts:         params.Carts,
		chats:         params.Chats,
		orchestrator:  params.Orchestrator,
		sender:        params.Sender,
		limiter:       params.Limiter,
		rateLimit:     params.RateLimit,
		rateWindow:    params.RateWindow,
		historySize:   params.HistorySize,
		pauseDuration: params.PauseDuration,
		retry:         params.Retry,
		logg:          params.Logger,
		now:           params.Now,
	}
	if s.rateWindow <= 0 {
		s.rateWindow = time.Minute
	}
	if s.pauseDuration <= 0 {
		s.pauseDuration = 30 * time.Minute
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Handle processes one inbound message end to end.
func (s *InboundService) Handle(ctx context.Context, msg InboundMessage) (*InboundResult, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" || strings.TrimSpace(msg.CustomerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and text are required")
	}

	shop, err := s.shops.FindByPageID(ctx, msg.PageID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithShopID(ctx, shop.ID.String())

	customer, created, err := s.customers.UpsertByExternalID(ctx, shop.ID, msg.CustomerID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithCustomerID(ctx, customer.ID.String())
	if created {
		if _, err := s.carts.Get(ctx, shop.ID, customer.ID); err != nil {
			return nil, err
		}
	}

	if msg.Echo {
		return s.humanTakeover(ctx, customer, text)
	}

	if _, err := s.chats.Append(ctx, customer.ID, enums.ChatRoleUser, text); err != nil {
		return nil, err
	}

	result := &InboundResult{CustomerID: customer.ID}
	if customer.AIPaused(s.now()) {
		result.Status = StatusPaused
		return result, nil
	}
	if !s.allow(ctx, customer.ID) {
		result.Status = StatusRateLimited
		return result, nil
	}

	history, err := s.chats.Recent(ctx, customer.ID, s.historySize)
	if err != nil {
		return nil, err
	}

	reply := s.orchestrator.Run(ctx, Conversation{
		Session:  tools.Session{ShopID: shop.ID, CustomerID: customer.ID},
		ShopName: shop.Name,
		History:  toModelMessages(history),
	})
	result.Reply = reply.Text
	result.Outcome = reply.Outcome

	if _, err := s.chats.Append(ctx, customer.ID, enums.ChatRoleAssistant, reply.Text); err != nil {
		return nil, err
	}

	err = retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return retry.Classify(s.sender.SendText(ctx, msg.CustomerID, reply.Text))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deliver assistant reply")
	}

	result.Status = StatusReplied
	return result, nil
}

// humanTakeover records a manual reply from the shop and pauses automated
// answers. Concurrent takeovers simply overwrite the pause deadline.
func (s *InboundService) humanTakeover(ctx context.Context, customer *models.Customer, text string) (*InboundResult, error) {
	if err := s.customers.PauseAI(ctx, customer.ID, s.now().Add(s.pauseDuration)); err != nil {
		return nil, err
	}
	if _, err := s.chats.Append(ctx, customer.ID, enums.ChatRoleHuman, text); err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "human takeover, assistant paused")
	return &InboundResult{Status: StatusHumanTakeover, CustomerID: customer.ID}, nil
}

// allow applies the per-customer fixed window. A limiter outage lets the
// message through.
func (s *InboundService) allow(ctx context.Context, customerID uuid.UUID) bool {
	if s.limiter == nil || s.rateLimit <= 0 {
		return true
	}
	allowed, count, err := s.limiter.FixedWindowAllow(ctx, "chat:"+customerID.String(), int64(s.rateLimit), s.rateWindow)
	if err != nil {
		s.logg.Error(ctx, "chat rate limiter unavailable", err)
		return true
	}
	if !allowed {
		s.logg.Warn(s.logg.WithField(ctx, "count", count), "chat rate limit exceeded")
	}
	return allowed
}

func toModelMessages(history []models.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		role := llm.RoleAssistant
		if turn.Role == enums.ChatRoleUser {
			role = llm.RoleUser
		}
		out = append(out, llm.Message{Role: role, Content: turn.Content})
	}
	return out
}
