package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// classificationOutput is the structured answer requested from the model.
type classificationOutput struct {
	Label              string  `json:"label" jsonschema:"enum=anxiety,enum=depression,enum=neutral,enum=stress,enum=suicidal"`
	Confidence         float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	NeedsImmediateHelp bool    `json:"needs_immediate_help"`
}

var classificationSchema = generateSchema[classificationOutput]()

const classificationInstructions = `You are an emotional-content classifier for a mental health support chat.
Classify the user's message into exactly one label: anxiety, depression, neutral, stress, suicidal.
confidence is your probability for that label, between 0 and 1.
needs_immediate_help is true only when the message indicates suicidal ideation or intent to self-harm with high confidence.
Return only the JSON object.`

// OpenAIClassifier asks an OpenAI model for a schema-constrained classification.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIClassifier builds a client with retries disabled; the adapter makes a single attempt.
func NewOpenAIClassifier(apiKey, baseURL, model string) *OpenAIClassifier {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClassifier{client: &client, model: model}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (Raw, error) {
	if c.client == nil {
		return Raw{}, errors.New("openai classifier: client is nil")
	}
	if c.model == "" {
		return Raw{}, errors.New("openai classifier: model is empty")
	}

	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        "SentimentClassification",
			Schema:      classificationSchema,
			Strict:      openai.Bool(true),
			Description: openai.String("Emotional classification of one chat message"),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(200),
		Instructions:    openai.String(classificationInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return Raw{}, fmt.Errorf("openai classification: %w", err)
	}

	var out classificationOutput
	if err := decodeModelJSON(resp.OutputText(), &out); err != nil {
		return Raw{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	confidence := out.Confidence
	risk := out.NeedsImmediateHelp
	return Raw{Label: out.Label, Confidence: &confidence, RiskFlag: &risk}, nil
}

// decodeModelJSON tolerates models that wrap the JSON object in extra text.
func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	requireAllProperties(m)
	return m
}

// requireAllProperties applies strict-mode rules: no extra keys, every property required.
func requireAllProperties(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name, prop := range props {
				required = append(required, name)
				if nested, ok := prop.(map[string]any); ok {
					requireAllProperties(nested)
				}
			}
			schema["required"] = required
		}
	}
}
