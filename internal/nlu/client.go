// README: NLU client; slot extraction and completion with a two-attempt parse loop.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tripdesk/internal/slots"
)

type Config struct {
	// Timeout bounds every generation call.
	Timeout time.Duration
	// ClassifyTimeout bounds the yes/no classification call.
	ClassifyTimeout time.Duration
	Location        *time.Location
	Now             func() time.Time
}

// Client talks to the language model on behalf of the dialogue core. No method returns an
// error: remote failures degrade to empty results or the caller's fallback.
type Client struct {
	provider Provider
	cfg      Config
	log      *zap.Logger
}

func NewClient(provider Provider, cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{provider: provider, cfg: cfg, log: log}
}

func (c *Client) today() string {
	return c.cfg.Now().In(c.cfg.Location).Format(slots.ISODate)
}

func (c *Client) generate(ctx context.Context, timeout time.Duration, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	raw, err := c.provider.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyResponse
	}
	return raw, nil
}

// nullSlots is the degraded extraction result.
func nullSlots() slots.SlotSet {
	conf := make(map[slots.Field]float64, len(slots.Fields))
	for _, f := range slots.Fields {
		conf[f] = 0
	}
	return slots.SlotSet{Confidence: conf}
}

// Extract reads the four slots from text. priorQuestion gives short answers their context.
func (c *Client) Extract(ctx context.Context, text, priorQuestion string) slots.SlotSet {
	input := text
	if q := strings.TrimSpace(priorQuestion); q != "" {
		input = fmt.Sprintf("Question: %s\nAnswer: %s", q, text)
	}
	s, err := c.slotsCall(ctx, fmt.Sprintf(extractInstruction, c.today()), input, nil)
	if err != nil {
		c.log.Warn("slot extraction degraded to empty result", zap.Error(err))
		return nullSlots()
	}
	return s
}

// CompleteRequest carries only what the completion step may see.
type CompleteRequest struct {
	Known        slots.SlotSet
	Missing      []slots.Field
	LastQuestion string
	UserInput    string
	// TransportFallback is asked when transport is still unknown and question generation fails.
	TransportFallback string
}

type Completion struct {
	Update            slots.SlotSet
	TransportQuestion string
}

type completePayload struct {
	LastQuestion *string            `json:"last_question"`
	UserInput    string             `json:"user_input"`
	KnownSlots   map[string]*string `json:"known_slots"`
}

// Complete asks the model for the missing fields only. It makes no call when nothing is missing.
func (c *Client) Complete(ctx context.Context, req CompleteRequest) Completion {
	if len(req.Missing) == 0 {
		return Completion{}
	}

	payload := completePayload{UserInput: req.UserInput, KnownSlots: map[string]*string{}}
	if q := strings.TrimSpace(req.LastQuestion); q != "" {
		payload.LastQuestion = &q
	}
	for _, f := range req.Missing {
		var v *string
		if s := req.Known.Get(f); s != "" {
			v = &s
		}
		payload.KnownSlots[string(f)] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("marshal completion payload", zap.Error(err))
		return Completion{}
	}

	update, err := c.slotsCall(ctx, fmt.Sprintf(completeInstruction, c.today()), string(body), req.Missing)
	if err != nil {
		c.log.Warn("slot completion degraded to no-op", zap.Error(err))
		update = slots.SlotSet{}
	}

	out := Completion{Update: update}
	for _, f := range req.Missing {
		if f == slots.FieldTransport && update.Transport == "" {
			out.TransportQuestion = c.GenerateQuestion(ctx, slots.FieldTransport, req.TransportFallback)
		}
	}
	return out
}

// slotsCall runs the two-attempt loop: the normal instruction, then a stricter one.
// allowed limits which fields are kept; nil keeps all four.
func (c *Client) slotsCall(ctx context.Context, instruction, input string, allowed []slots.Field) (slots.SlotSet, error) {
	prompts := []string{instruction, instruction + strictSuffix}
	var lastErr error
	for attempt, prompt := range prompts {
		raw, err := c.generate(ctx, c.cfg.Timeout, Request{
			Instruction: prompt,
			Text:        input,
			Temperature: 0.2,
			MaxTokens:   2000,
			JSON:        true,
		})
		if err != nil {
			// Transport failures are not retried; only malformed answers are.
			return slots.SlotSet{}, err
		}
		s, err := parseSlots(raw, allowed)
		if err == nil {
			return s, nil
		}
		c.log.Debug("unparseable slot response", zap.Int("attempt", attempt+1), zap.Error(err))
		lastErr = err
	}
	return slots.SlotSet{}, lastErr
}

var slotKeys = map[slots.Field][]string{
	slots.FieldOrigin:      {"origin", "from"},
	slots.FieldDestination: {"destination", "to"},
	slots.FieldDate:        {"date"},
	slots.FieldTransport:   {"transport"},
}

// parseSlots validates the model answer against the slot schema.
func parseSlots(raw string, allowed []slots.Field) (slots.SlotSet, error) {
	obj, ok := ExtractLastJSON(raw)
	if !ok {
		return slots.SlotSet{}, ErrNoJSON
	}
	if allowed == nil {
		allowed = slots.Fields
	}

	conf, err := parseConfidence(obj["confidence"])
	if err != nil {
		return slots.SlotSet{}, err
	}

	var out slots.SlotSet
	seen := false
	for _, f := range allowed {
		for _, key := range slotKeys[f] {
			v, present := obj[key]
			if !present {
				continue
			}
			seen = true
			switch val := v.(type) {
			case nil:
			case string:
				if s := slots.Sanitize(val); s != "" {
					out.Set(f, s, confFor(conf, f, key))
				}
			default:
				return slots.SlotSet{}, fmt.Errorf("%w: %q is %T", ErrSchema, key, v)
			}
			break
		}
	}
	if !seen {
		return slots.SlotSet{}, fmt.Errorf("%w: no slot keys", ErrSchema)
	}
	return out, nil
}

// parseConfidence accepts a per-field object or a single number. Missing values mean 0.
func parseConfidence(v any) (map[string]float64, error) {
	out := map[string]float64{}
	switch c := v.(type) {
	case nil:
	case float64:
		for _, keys := range slotKeys {
			for _, k := range keys {
				out[k] = c
			}
		}
	case map[string]any:
		for k, x := range c {
			if n, ok := x.(float64); ok {
				out[k] = n
			}
		}
	default:
		return nil, fmt.Errorf("%w: confidence is %T", ErrSchema, v)
	}
	return out, nil
}

func confFor(conf map[string]float64, f slots.Field, key string) float64 {
	if v, ok := conf[string(f)]; ok {
		return v
	}
	return conf[key]
}
