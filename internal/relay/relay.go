// Package relay streams a model reply fragment by fragment and persists the
// complete reply once the provider finishes.
//
// Each invocation is a small state machine:
//
//	Idle -> Streaming -> Completed
//	             \-----> Failed
//
// Streaming is entered once the provider accepts the request. Entering
// Completed runs the persistence hook exactly once; Failed never persists.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/rs/zerolog"

	"github.com/comigor/jarvis-chat/internal/config"
	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/llm"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// State of a single relay invocation.
type State string

const (
	StateIdle      State = "Idle"
	StateStreaming State = "Streaming"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
)

type trigger string

const (
	triggerAccepted trigger = "ProviderAccepted"
	triggerFinished trigger = "ProviderFinished"
	triggerFailed   trigger = "Failed"
)

// persistTimeout bounds the post-stream write, which runs detached from the
// request so a disconnect right after the last fragment does not lose it.
const persistTimeout = 10 * time.Second

// Persister stores the assistant reply.
type Persister interface {
	AppendMessage(ctx context.Context, conversationID string, role domain.Role, content string) (*domain.Message, error)
}

// Request is one relay invocation. History is the full ordered transcript to
// send; the provider keeps no session. With an empty ConversationID nothing
// is persisted.
type Request struct {
	ConversationID string
	History        []domain.NewMessage
}

// Relay opens provider streams.
type Relay struct {
	client       llm.Client
	llmCfg       config.LLMConfig
	systemPrompt string
	maxDuration  time.Duration
	persister    Persister
}

// New creates a relay. systemPrompt is sent ahead of every history.
func New(client llm.Client, llmCfg config.LLMConfig, relayCfg config.RelayConfig, systemPrompt string, persister Persister) *Relay {
	return &Relay{
		client:       client,
		llmCfg:       llmCfg,
		systemPrompt: systemPrompt,
		maxDuration:  relayCfg.MaxDuration,
		persister:    persister,
	}
}

// Open sends the request to the provider and returns the live stream. Errors
// before the provider accepts the request are returned here; the stream is
// then already Failed and there is nothing to close.
func (r *Relay) Open(ctx context.Context, req Request) (*Stream, error) {
	if len(req.History) == 0 {
		return nil, domain.Validation("messages are required")
	}
	for _, m := range req.History {
		if !m.Role.Valid() {
			return nil, domain.Validation(fmt.Sprintf("invalid role %q", m.Role))
		}
	}

	var cancel context.CancelFunc
	if r.maxDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.maxDuration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	log := logger.Ctx(ctx).With().Str(logger.FieldConversationID, req.ConversationID).Logger()
	s := &Stream{
		ctx:            ctx,
		cancel:         cancel,
		conversationID: req.ConversationID,
		persister:      r.persister,
		log:            &log,
	}
	s.configure()

	upstream, err := r.client.CreateChatCompletionStream(ctx, llm.BuildRequest(r.llmCfg, r.systemPrompt, req.History))
	if err != nil {
		s.fail(llm.Classify(err))
		return nil, s.err
	}
	s.upstream = upstream

	if err := s.fsm.FireCtx(ctx, triggerAccepted); err != nil {
		s.fail(fmt.Errorf("relay: %w", err))
		return nil, s.err
	}
	return s, nil
}

// Stream is a single-consumer, ordered sequence of fragments. It is not safe
// for concurrent use.
type Stream struct {
	ctx            context.Context
	cancel         context.CancelFunc
	upstream       llm.Stream
	fsm            *stateless.StateMachine
	conversationID string
	persister      Persister
	log            *zerolog.Logger

	text       strings.Builder
	err        error
	persisted  *domain.Message
	persistErr error
}

func (s *Stream) configure() {
	s.fsm = stateless.NewStateMachine(StateIdle)

	s.fsm.Configure(StateIdle).
		Permit(triggerAccepted, StateStreaming).
		Permit(triggerFailed, StateFailed)

	s.fsm.Configure(StateStreaming).
		OnEntry(func(_ context.Context, _ ...any) error {
			s.log.Debug().Msg("relay streaming")
			return nil
		}).
		Permit(triggerFinished, StateCompleted).
		Permit(triggerFailed, StateFailed)

	s.fsm.Configure(StateCompleted).
		OnEntry(func(_ context.Context, _ ...any) error {
			s.release()
			s.persist()
			return nil
		})

	s.fsm.Configure(StateFailed).
		OnEntry(func(_ context.Context, _ ...any) error {
			s.release()
			s.log.Warn().Err(s.err).Int("partial_len", s.text.Len()).Msg("relay failed")
			return nil
		})
}

// Recv returns the next fragment in provider order. It returns io.EOF once
// the provider finished and the reply was handed to the persistence hook, or
// the terminal error after a failure. Empty provider deltas are skipped.
func (s *Stream) Recv() (string, error) {
	switch s.State() {
	case StateCompleted:
		return "", io.EOF
	case StateFailed:
		return "", s.err
	}

	for {
		if err := s.ctx.Err(); err != nil {
			s.fail(llm.Classify(err))
			return "", s.err
		}

		resp, err := s.upstream.Recv()
		if errors.Is(err, io.EOF) {
			s.fire(triggerFinished)
			return "", io.EOF
		}
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			s.fail(llm.Classify(err))
			return "", s.err
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		s.text.WriteString(delta)
		return delta, nil
	}
}

// Close aborts a stream that has not finished. A finished stream is left as is.
func (s *Stream) Close() error {
	if st := s.State(); st == StateIdle || st == StateStreaming {
		s.fail(domain.Upstream("canceled", context.Canceled))
	}
	return nil
}

// State reports the current state.
func (s *Stream) State() State {
	return s.fsm.MustState().(State)
}

// Text is everything forwarded so far.
func (s *Stream) Text() string {
	return s.text.String()
}

// Err is the terminal error of a Failed stream.
func (s *Stream) Err() error {
	return s.err
}

// Persisted is the stored assistant message, if the hook ran and succeeded.
func (s *Stream) Persisted() *domain.Message {
	return s.persisted
}

// PersistErr is the hook failure, if any. It never turns a completed stream
// into a failed one.
func (s *Stream) PersistErr() error {
	return s.persistErr
}

func (s *Stream) fail(err error) {
	if s.err == nil {
		s.err = err
	}
	s.fire(triggerFailed)
}

func (s *Stream) fire(t trigger) {
	if err := s.fsm.Fire(t); err != nil {
		s.log.Error().Err(err).Str("trigger", string(t)).Msg("relay transition rejected")
	}
}

// release frees the provider request and the deadline timer.
func (s *Stream) release() {
	if s.upstream != nil {
		if err := s.upstream.Close(); err != nil {
			s.log.Debug().Err(err).Msg("provider stream close")
		}
	}
	s.cancel()
}

func (s *Stream) persist() {
	if s.conversationID == "" || s.persister == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), persistTimeout)
	defer cancel()

	msg, err := s.persister.AppendMessage(ctx, s.conversationID, domain.RoleAssistant, s.text.String())
	if err != nil {
		s.persistErr = err
		s.log.Error().Err(err).Msg("failed to persist assistant reply")
		return
	}
	s.persisted = msg
	s.log.Info().Int("len", len(msg.Content)).Msg("assistant reply persisted")
}
