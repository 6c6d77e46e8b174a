package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/estate-chat/internal/metrics"
)

const (
	DefaultPerPage = 20
	MinPerPage     = 10
	MaxPerPage     = 50

	defaultNotifyTimeout = 2 * time.Second

	// timestampPrecision matches the datetime(3) columns so a returned
	// timestamp is the one later read back.
	timestampPrecision = time.Millisecond
)

type Service struct {
	repo          *Repo
	notifier      Notifier
	notifyTimeout time.Duration
	log           zerolog.Logger

	now      func() time.Time
	inflight sync.WaitGroup
}

func NewService(repo *Repo, notifier Notifier, notifyTimeout time.Duration, log zerolog.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &Service{
		repo:          repo,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		log:           log.With().Str("component", "conversation").Logger(),
		now:           time.Now,
	}
}

type StartInput struct {
	Token       string
	ClientName  *string
	ClientEmail *string
	ClientPhone *string
}

// Start resumes the conversation identified by in.Token, or creates a new one when
// no token is given or the token matches nothing. Resumption never mutates the row.
func (s *Service) Start(ctx context.Context, in StartInput, caller Caller) (*Conversation, bool, error) {
	if token := strings.TrimSpace(in.Token); token != "" {
		conv, err := s.repo.GetConversationByToken(ctx, token)
		if err == nil {
			metrics.ConversationsStarted.WithLabelValues("resumed").Inc()
			return conv, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("resume conversation: %w", err)
		}
	}

	conv := &Conversation{
		PublicToken: uuid.NewString(),
		UserID:      caller.UserID,
		ClientName:  clip(firstNonBlank(in.ClientName, caller.Name), maxClientName),
		ClientEmail: clip(firstNonBlank(in.ClientEmail, caller.Email), maxClientEmail),
		ClientPhone: clip(firstNonBlank(in.ClientPhone, caller.Phone), maxClientPhone),
		Status:      StatusOpen,
	}
	// a token collision surfaces as a unique constraint error; the caller starts over
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	metrics.ConversationsStarted.WithLabelValues("created").Inc()
	return conv, false, nil
}

// Resolve is the hard lookup shared by every token-addressed operation.
func (s *Service) Resolve(ctx context.Context, token string) (*Conversation, error) {
	return s.repo.GetConversationByToken(ctx, token)
}

// Get returns the lookup view of a conversation.
func (s *Service) Get(ctx context.Context, token string) (*ConversationDetail, error) {
	conv, err := s.repo.GetConversationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	// unread for a side = messages from the other side not yet read
	unreadUser, err := s.repo.CountUnread(ctx, conv.ID, SenderAdmin)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	unreadAdmin, err := s.repo.CountUnread(ctx, conv.ID, SenderUser)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}

	d := &ConversationDetail{
		ConversationPayload: conv.Payload(),
		UnreadForUser:       unreadUser,
		UnreadForAdmin:      unreadAdmin,
	}
	if conv.LastMessageAt != nil {
		v := formatTime(*conv.LastMessageAt)
		d.LastMessageAt = &v
	}
	return d, nil
}

func ClampPerPage(perPage int) int {
	if perPage <= 0 {
		return DefaultPerPage
	}
	if perPage < MinPerPage {
		return MinPerPage
	}
	if perPage > MaxPerPage {
		return MaxPerPage
	}
	return perPage
}

// ListMessages returns one offset page of the conversation's history, oldest first.
// Pages are not snapshot isolated: appends between calls can shift later pages.
func (s *Service) ListMessages(ctx context.Context, token string, perPage, page int) (*MessagePage, error) {
	conv, err := s.repo.GetConversationByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	perPage = ClampPerPage(perPage)

	total, err := s.repo.CountMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}
	// anything past the end is reported as the first empty page
	if page < 1 {
		page = 1
	} else if page > lastPage+1 {
		page = lastPage + 1
	}

	msgs, err := s.repo.ListMessagesPage(ctx, conv.ID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := &MessagePage{
		Data: make([]MessagePayload, 0, len(msgs)),
		Meta: PageMeta{
			CurrentPage: page,
			LastPage:    lastPage,
			PerPage:     perPage,
			Total:       total,
		},
	}
	for i := range msgs {
		out.Data = append(out.Data, msgs[i].Payload())
	}
	return out, nil
}

type AppendInput struct {
	Token  string
	Sender string
	Body   *string
	// TempID is echoed back for client reconciliation and never stored.
	TempID *string
}

// Append persists a message and then notifies the other parties without waiting.
// The returned message is durable regardless of the notification outcome.
func (s *Service) Append(ctx context.Context, in AppendInput, caller Caller) (*MessagePayload, error) {
	if !validSender(in.Sender) {
		return nil, fmt.Errorf("%w: sender must be %q or %q", ErrValidation, SenderUser, SenderAdmin)
	}

	conv, err := s.repo.GetConversationByToken(ctx, in.Token)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ConversationID: conv.ID,
		Sender:         in.Sender,
		SenderID:       caller.UserID,
		Body:           in.Body,
		CreatedAt:      s.timestamp(),
	}
	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	metrics.MessagesAppended.WithLabelValues(msg.Sender).Inc()

	payload := msg.Payload()
	s.notify(ctx, Event{
		Type:              EventMessageCreated,
		ConversationToken: conv.PublicToken,
		Message:           &payload,
	})

	out := payload
	out.TempID = in.TempID
	return &out, nil
}

// MarkRead sets read_at on every unread message authored by the opposite side of as.
// Re-running it after everything is read changes zero rows and still succeeds.
func (s *Service) MarkRead(ctx context.Context, token string, as string) (int64, error) {
	if !validSender(as) {
		return 0, fmt.Errorf("%w: as must be %q or %q", ErrValidation, SenderUser, SenderAdmin)
	}

	conv, err := s.repo.GetConversationByToken(ctx, token)
	if err != nil {
		return 0, err
	}

	at := s.timestamp()
	n, err := s.repo.MarkRead(ctx, conv.ID, OppositeSender(as), at)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	if n > 0 {
		metrics.MessagesMarkedRead.Add(float64(n))
		s.notify(ctx, Event{
			Type:              EventMessagesRead,
			ConversationToken: conv.PublicToken,
			As:                as,
			Count:             n,
			ReadAt:            formatTime(at),
		})
	}
	return n, nil
}

// Close moves a conversation to closed. Closing twice is a no-op.
func (s *Service) Close(ctx context.Context, token string) (*Conversation, error) {
	conv, err := s.repo.GetConversationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if conv.Status == StatusClosed {
		return conv, nil
	}
	if err := s.repo.UpdateStatus(ctx, conv.ID, StatusClosed); err != nil {
		return nil, fmt.Errorf("close conversation: %w", err)
	}
	conv.Status = StatusClosed
	return conv, nil
}

// notify dispatches ev on its own goroutine bounded by notifyTimeout.
// The outcome is only logged; nothing is returned to the request path.
func (s *Service) notify(ctx context.Context, ev Event) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				metrics.RecordNotification("panic", time.Since(start).Seconds())
				s.log.Error().
					Interface("panic", r).
					Str("event", ev.Type).
					Str("conversation_token", ev.ConversationToken).
					Msg("notifier panicked")
			}
		}()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()

		if err := s.notifier.Publish(nctx, ev); err != nil {
			metrics.RecordNotification("failed", time.Since(start).Seconds())
			e := s.log.Warn().
				Err(err).
				Str("event", ev.Type).
				Str("conversation_token", ev.ConversationToken)
			if ev.Message != nil {
				e = e.Uint64("message_id", ev.Message.ID)
			}
			e.Msg("notification dropped")
			return
		}
		metrics.RecordNotification("ok", time.Since(start).Seconds())
	}()
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(timestampPrecision)
}

// Drain blocks until in-flight notifications finish or ctx is done.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstNonBlank(vals ...*string) *string {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if t := strings.TrimSpace(*v); t != "" {
			return &t
		}
	}
	return nil
}

// clip cuts v to at most n runes.
func clip(v *string, n int) *string {
	if v == nil || utf8.RuneCountInString(*v) <= n {
		return v
	}
	r := []rune(*v)
	out := strings.TrimSpace(string(r[:n]))
	return &out
}
