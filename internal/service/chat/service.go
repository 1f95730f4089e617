package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
	"github.com/zhouzirui/mindful-chat/backend/internal/observability"
	"github.com/zhouzirui/mindful-chat/backend/internal/service/ai"
	"github.com/zhouzirui/mindful-chat/backend/internal/service/sentiment"
)

var (
	ErrEmptyMessage  = errors.New("message is required")
	ErrOwnerRequired = errors.New("owner is required")
)

// State is a turn's position in the processing pipeline.
type State string

const (
	StateReceived   State = "received"
	StateClassified State = "classified"
	StateGenerated  State = "generated"
	StatePersisted  State = "persisted"
	StateRejected   State = "rejected"
)

// Classifier is satisfied by *sentiment.Adapter.
type Classifier interface {
	Classify(ctx context.Context, text string) sentiment.Result
}

// Generator is satisfied by *ai.Service.
type Generator interface {
	Generate(ctx context.Context, text string, label turn.Label, confidence float64) ai.Reply
}

// TurnResult describes a persisted turn and how each upstream fared.
type TurnResult struct {
	Turn       turn.Turn
	State      State
	Sentiment  turn.Outcome
	Generation turn.Outcome
	Tier       ai.Tier
}

// PersistError means the reply was generated but could not be saved.
type PersistError struct {
	Reply string
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist turn: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Service orchestrates one message turn: classify, generate, persist.
type Service struct {
	classifier Classifier
	generator  Generator
	store      turn.Store
	log        *observability.Logger
	tracer     trace.Tracer
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *observability.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewService wires the orchestrator.
func NewService(classifier Classifier, generator Generator, store turn.Store, opts ...Option) *Service {
	s := &Service{
		classifier: classifier,
		generator:  generator,
		store:      store,
		log:        observability.NewNop(),
		tracer:     observability.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("turn")
	return s
}

// SendMessage runs the turn pipeline for owner. Only validation and persistence can fail.
func (s *Service) SendMessage(ctx context.Context, owner, message string) (*TurnResult, error) {
	ctx, span := s.tracer.Start(ctx, "chat.SendMessage")
	defer span.End()

	log := s.log.With("owner", owner)
	state := StateReceived
	log.Debug("turn state", "state", state, "length", len(message))

	if strings.TrimSpace(owner) == "" {
		span.SetStatus(codes.Error, ErrOwnerRequired.Error())
		return nil, ErrOwnerRequired
	}
	if strings.TrimSpace(message) == "" {
		state = StateRejected
		log.Info("turn rejected", "state", state, "reason", ErrEmptyMessage.Error())
		span.SetAttributes(attribute.String("chat.state", string(state)))
		return nil, ErrEmptyMessage
	}

	classification := s.classify(ctx, message)
	state = StateClassified
	log.Debug("turn state", "state", state, "label", string(classification.Label), "outcome", classification.Outcome)

	reply := s.generate(ctx, message, classification)
	state = StateGenerated
	log.Debug("turn state", "state", state, "tier", string(reply.Tier), "outcome", reply.Outcome)

	record := turn.Turn{
		Owner:      owner,
		Message:    message,
		Reply:      reply.Text,
		Label:      classification.Label,
		Confidence: classification.Confidence,
		RiskFlag:   classification.RiskFlag,
	}

	saved, err := s.persist(ctx, record)
	if err != nil {
		log.Error("failed to persist turn", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, &PersistError{Reply: reply.Text, Err: err}
	}
	state = StatePersisted

	span.SetAttributes(
		attribute.String("chat.state", string(state)),
		attribute.String("chat.turn_id", saved.ID),
		attribute.String("chat.label", string(saved.Label)),
		attribute.Bool("chat.risk", saved.RiskFlag),
	)
	if saved.RiskFlag {
		log.Warn("turn flagged for immediate help", "turn_id", saved.ID)
	}
	log.Info("turn persisted", "turn_id", saved.ID, "label", string(saved.Label), "sentiment", classification.Outcome, "generation", reply.Outcome)

	return &TurnResult{
		Turn:       saved,
		State:      state,
		Sentiment:  classification.Outcome,
		Generation: reply.Outcome,
		Tier:       reply.Tier,
	}, nil
}

// History returns the owner's turns in ascending creation order.
func (s *Service) History(ctx context.Context, owner string) ([]turn.Turn, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrOwnerRequired
	}
	turns, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return turns, nil
}

// ClearHistory deletes every turn of owner and reports how many went.
func (s *Service) ClearHistory(ctx context.Context, owner string) (int64, error) {
	if strings.TrimSpace(owner) == "" {
		return 0, ErrOwnerRequired
	}
	deleted, err := s.store.DeleteAllByOwner(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	s.log.Info("history cleared", "owner", owner, "deleted", deleted)
	return deleted, nil
}

func (s *Service) classify(ctx context.Context, message string) sentiment.Result {
	ctx, span := s.tracer.Start(ctx, "chat.classify")
	defer span.End()

	if s.classifier == nil {
		return sentiment.Fallback(sentiment.ErrNoClassifier)
	}
	res := s.classifier.Classify(ctx, message)
	span.SetAttributes(
		attribute.String("sentiment.label", string(res.Label)),
		attribute.Float64("sentiment.confidence", res.Confidence),
		attribute.String("sentiment.outcome", string(res.Outcome)),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	return res
}

func (s *Service) generate(ctx context.Context, message string, classification sentiment.Result) ai.Reply {
	ctx, span := s.tracer.Start(ctx, "chat.generate")
	defer span.End()

	var reply ai.Reply
	if s.generator == nil {
		reply = ai.Reply{Text: ai.ConfigFallbackReply, Outcome: turn.OutcomeDegraded, Tier: ai.TierConfig, Err: ai.ErrNotConfigured}
	} else {
		reply = s.generator.Generate(ctx, message, classification.Label, classification.Confidence)
	}
	span.SetAttributes(
		attribute.String("generation.tier", string(reply.Tier)),
		attribute.String("generation.outcome", string(reply.Outcome)),
	)
	if reply.Err != nil {
		span.RecordError(reply.Err)
	}
	return reply
}

func (s *Service) persist(ctx context.Context, record turn.Turn) (turn.Turn, error) {
	ctx, span := s.tracer.Start(ctx, "chat.persist")
	defer span.End()

	saved, err := s.store.Create(ctx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return turn.Turn{}, err
	}
	return saved, nil
}
