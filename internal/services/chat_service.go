package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ChatService manages the partner lists and unread counters that make up a
// user's chat overview.
type ChatService struct {
	users UserDirectory
	state ChatState
}

// NewChatService wires a ChatService to the user directory and chat state store.
func NewChatService(users UserDirectory, state ChatState) *ChatService {
	return &ChatService{users: users, state: state}
}

// Overview is the payload of the chat overview endpoint: the user's partners
// in link order plus the unread counter for each.
type Overview struct {
	Partners []string         `json:"chatPartners"`
	Unread   map[string]int64 `json:"unreadCounts"`
}

// Link records user and partner as chat partners on both sides. It rejects
// self-links and unknown partners; linking an existing pair is a no-op.
func (s *ChatService) Link(ctx context.Context, user, partner string) error {
	ctx, span := otel.Tracer("services").Start(ctx, "ChatService.Link")
	defer span.End()
	span.SetAttributes(attribute.String("chat.partner", partner))

	if user == partner {
		return ErrSelfMessage
	}
	ok, err := s.users.Exists(ctx, partner)
	if err != nil {
		return fmt.Errorf("check partner: %w", err)
	}
	if !ok {
		return ErrUnknownUser
	}
	return s.state.LinkUsers(ctx, user, partner)
}

// Unlink removes the pair from both partner lists and clears the shared room
// history and both unread counters. Unlinking a pair that was never linked is
// a no-op.
func (s *ChatService) Unlink(ctx context.Context, user, partner string) error {
	ctx, span := otel.Tracer("services").Start(ctx, "ChatService.Unlink")
	defer span.End()

	if user == partner {
		return ErrSelfMessage
	}
	return s.state.UnlinkUsers(ctx, user, partner)
}

// MarkRead clears user's unread counter for partner, acknowledging that the
// conversation has been viewed.
func (s *ChatService) MarkRead(ctx context.Context, user, partner string) error {
	ctx, span := otel.Tracer("services").Start(ctx, "ChatService.MarkRead")
	defer span.End()

	if err := s.state.ResetUnread(ctx, user, partner); err != nil {
		return err
	}
	unreadResets.Inc()
	return nil
}

// GetOverview returns user's partners in link order with the unread counter
// for each. Counters for partners with no pending messages read as zero.
func (s *ChatService) GetOverview(ctx context.Context, user string) (Overview, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "ChatService.GetOverview")
	defer span.End()

	partners, err := s.state.Partners(ctx, user)
	if err != nil {
		return Overview{}, err
	}
	ov := Overview{
		Partners: partners,
		Unread:   make(map[string]int64, len(partners)),
	}
	for _, p := range partners {
		n, err := s.state.Unread(ctx, user, p)
		if err != nil {
			return Overview{}, fmt.Errorf("unread counter for %s: %w", p, err)
		}
		ov.Unread[p] = n
	}
	return ov, nil
}

// OverviewVersion returns a cheap fingerprint of user's overview (partner
// count and unread total) for ETag-style cache validation.
func (s *ChatService) OverviewVersion(ctx context.Context, user string) (string, error) {
	partners, unread, err := s.state.OverviewStats(ctx, user)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d", partners, unread), nil
}
