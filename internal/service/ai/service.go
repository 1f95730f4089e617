package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
	"github.com/zhouzirui/mindful-chat/backend/internal/observability"
)

const (
	// ConfigFallbackReply is returned when the model credentials or configuration are unusable.
	ConfigFallbackReply = "I apologize, but there seems to be an issue with the API configuration. Please contact support."
	// GenericFallbackReply is returned for every other generation failure.
	GenericFallbackReply = "I apologize, but I'm having trouble formulating a response. Please know that your feelings are valid and important. If you're in immediate distress, please reach out to a mental health professional or call the Sneha India Suicide Prevention Helpline at 044-24640050 (available 24/7, confidential, and free)."
)

// Tier identifies which reply was produced.
type Tier string

const (
	TierNone    Tier = "none"
	TierConfig  Tier = "config"
	TierGeneric Tier = "generic"
)

var (
	ErrNotConfigured = errors.New("generation model not configured")
	ErrEmptyReply    = errors.New("generation model returned an empty reply")
)

var credentialMarkers = []string{
	"api key",
	"apikey",
	"unauthorized",
	"invalid credential",
	"authentication",
}

// credentialStatus matches 401/403 only where they read as an HTTP status, so
// request ids and token counts that happen to contain those digits do not.
var credentialStatus = regexp.MustCompile(`(?i)\b(?:status(?:\s*code)?|error\s*code|http(?:/\d(?:\.\d)?)?|code)\s*[:=]?\s*(?:401|403)\b`)

// Reply is always safe to show to the user. Err records the cause of a fallback.
type Reply struct {
	Text    string
	Outcome turn.Outcome
	Tier    Tier
	Err     error
}

// Service encapsulates reply generation.
type Service struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
	log     *observability.Logger
}

// NewService compiles the prompt chain around chatModel. A nil chatModel yields a service
// that answers every call with the configuration fallback.
func NewService(ctx context.Context, chatModel model.BaseChatModel, timeout time.Duration, log *observability.Logger) (*Service, error) {
	if log == nil {
		log = observability.NewNop()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	svc := &Service{timeout: timeout, log: log.Named("ai")}
	if chatModel == nil {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	svc.chain = runnable
	return svc, nil
}

// Generate produces a reply for text. It never returns an empty string or a raw error message.
func (s *Service) Generate(ctx context.Context, text string, label turn.Label, confidence float64) (reply Reply) {
	if s == nil || s.chain == nil {
		return s.fallback(ErrNotConfigured)
	}

	defer func() {
		if r := recover(); r != nil {
			reply = s.fallback(fmt.Errorf("generation panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := map[string]any{
		"system":  BuildSystemPrompt(label, confidence),
		"history": openingExchange(),
		"query":   text,
	}

	msg, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return s.fallback(fmt.Errorf("failed to run AI chain: %w", err))
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.fallback(ErrEmptyReply)
	}

	s.log.Debug("generated reply", "label", string(label), "confidence", confidence, "length", len(msg.Content))
	return Reply{Text: msg.Content, Outcome: turn.OutcomeSuccess, Tier: TierNone}
}

func (s *Service) fallback(cause error) Reply {
	tier := classify(cause)
	text := GenericFallbackReply
	if tier == TierConfig {
		text = ConfigFallbackReply
	}
	if s != nil && s.log != nil {
		s.log.Warn("generation degraded", "tier", string(tier), "error", cause)
	}
	return Reply{Text: text, Outcome: turn.OutcomeDegraded, Tier: tier, Err: cause}
}

func classify(err error) Tier {
	if errors.Is(err, ErrNotConfigured) || IsCredentialError(err) {
		return TierConfig
	}
	return TierGeneric
}

// IsCredentialError reports whether err looks like an authentication or API-key problem.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range credentialMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return credentialStatus.MatchString(msg)
}
