// Package chat ties the session, request gateway and conversation log into
// the user-facing ask, ingest and clear actions.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/ragchat/internal/conversation"
	"github.com/user/ragchat/internal/types"
	"github.com/user/ragchat/pkg/rag"
	logx "github.com/user/ragchat/pkg/logger"
)

// ErrEmptyQuestion is returned for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// Gateway is the request side the service drives. *gateway.Gateway
// satisfies it.
type Gateway interface {
	Ask(ctx context.Context, question string) (*rag.AskResponse, error)
	Ingest(ctx context.Context) (*rag.IngestResponse, error)
}

// Service runs one ask and one ingest at a time. A failed ask leaves the
// user turn in the log so it can be resubmitted.
type Service struct {
	gateway Gateway
	log     *conversation.Log
	now     func() time.Time

	ask    *Mutation
	ingest *Mutation
}

func NewService(gw Gateway, log *conversation.Log) *Service {
	return &Service{
		gateway: gw,
		log:     log,
		now:     time.Now,
		ask:     NewMutation(),
		ingest:  NewMutation(),
	}
}

// Send appends question as a user turn, asks the backend and appends the
// answer as an agent turn.
func (s *Service) Send(ctx context.Context, question string) (*types.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	var reply *types.Message
	err := s.ask.Run(ctx, func(ctx context.Context) error {
		if err := s.log.Append(ctx, types.NewUserMessage(question, s.now())); err != nil {
			return err
		}

		resp, err := s.gateway.Ask(ctx, question)
		if err != nil {
			return err
		}

		msg := types.NewAgentMessage(resp, s.now())
		if err := s.log.Append(ctx, msg); err != nil {
			return err
		}
		reply = &msg
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrPending) {
			logx.Warn().Err(err).Str("kind", string(rag.KindOf(err))).Msg("ask did not complete")
		}
		return nil, err
	}
	return reply, nil
}

// Ingest triggers a backend re-index.
func (s *Service) Ingest(ctx context.Context) (*rag.IngestResponse, error) {
	var resp *rag.IngestResponse
	err := s.ingest.Run(ctx, func(ctx context.Context) error {
		r, err := s.gateway.Ingest(ctx)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Clear empties the log and starts a new conversation. It holds the ask slot
// while it runs, so it is refused while an ask is pending and no ask can
// start until it is done.
func (s *Service) Clear(ctx context.Context) (types.ConversationID, error) {
	var id types.ConversationID
	err := s.ask.Exclusive(func() error {
		var err error
		id, err = s.log.Clear(ctx)
		return err
	})
	if errors.Is(err, ErrPending) {
		return "", fmt.Errorf("clear conversation: %w", err)
	}
	return id, err
}

func (s *Service) AskState() State    { return s.ask.State() }
func (s *Service) IngestState() State { return s.ingest.State() }

// Log exposes the conversation log for reads and export.
func (s *Service) Log() *conversation.Log { return s.log }
