// README: Lightweight NLU calls with local fallbacks (yes/no, questions, confirmation, time, history).
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tripdesk/internal/slots"
)

type Answer string

const (
	AnswerYes     Answer = "yes"
	AnswerNo      Answer = "no"
	AnswerUnknown Answer = "unknown"
)

var (
	yesWords   = []string{"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "correct", "right", "да", "ага", "угу", "ок", "окей", "конечно", "верно", "давай"}
	yesPhrases = []string{"of course", "sounds good", "go ahead", "всё верно", "все верно"}
	noWords    = []string{"no", "nope", "nah", "not", "нет", "неа", "не", "откажусь"}
	noPhrases  = []string{"don't", "do not", "не надо", "не хочу", "no thanks"}
)

// ClassifyYesNo classifies a reply to a yes/no question. Anything the model cannot decide
// falls back to the local word lists.
func (c *Client) ClassifyYesNo(ctx context.Context, text string) Answer {
	raw, err := c.generate(ctx, c.cfg.ClassifyTimeout, Request{
		Instruction: yesNoInstruction,
		Text:        text,
		Temperature: 0.1,
		MaxTokens:   20,
	})
	if err != nil {
		c.log.Warn("yes/no classification failed, using keywords", zap.Error(err))
		return LocalYesNo(text)
	}
	switch strings.Trim(strings.ToLower(strings.TrimSpace(raw)), `."'!`) {
	case "yes", "да":
		return AnswerYes
	case "no", "нет":
		return AnswerNo
	}
	return LocalYesNo(text)
}

// LocalYesNo is the keyword classifier. Negative forms win over affirmative ones.
func LocalYesNo(text string) Answer {
	t := " " + strings.ToLower(strings.TrimSpace(text)) + " "
	words := strings.FieldsFunc(t, func(r rune) bool {
		return !(r == '\'' || r == '’' || r == '-' || isLetterOrDigit(r))
	})
	has := func(list []string) bool {
		for _, w := range words {
			for _, x := range list {
				if w == x {
					return true
				}
			}
		}
		return false
	}
	for _, p := range noPhrases {
		if strings.Contains(t, p) {
			return AnswerNo
		}
	}
	if has(noWords) {
		return AnswerNo
	}
	for _, p := range yesPhrases {
		if strings.Contains(t, p) {
			return AnswerYes
		}
	}
	if has(yesWords) {
		return AnswerYes
	}
	return AnswerUnknown
}

func isLetterOrDigit(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'а' && r <= 'я' || r == 'ё'
}

var fieldNames = map[slots.Field]string{
	slots.FieldOrigin:      "departure city",
	slots.FieldDestination: "destination city",
	slots.FieldDate:        "travel date",
	slots.FieldTransport:   "preferred transport (bus, train or plane)",
}

// GenerateQuestion phrases a question about field, or returns fallback.
func (c *Client) GenerateQuestion(ctx context.Context, field slots.Field, fallback string) string {
	raw, err := c.generate(ctx, c.cfg.Timeout, Request{
		Instruction: fmt.Sprintf(questionInstruction, fieldNames[field]),
		Text:        string(field),
		Temperature: 0.7,
		MaxTokens:   80,
	})
	if err != nil || !plainSentence(raw) {
		return fallback
	}
	return strings.TrimSpace(raw)
}

// GenerateConfirmation phrases the confirmation. A sentence that drops a city is rejected.
func (c *Client) GenerateConfirmation(ctx context.Context, s slots.SlotSet, fallback string) string {
	trip, _ := json.Marshal(map[string]string{
		"origin":      s.Origin,
		"destination": s.Destination,
		"date":        s.Date,
		"transport":   string(s.Transport),
	})
	raw, err := c.generate(ctx, c.cfg.Timeout, Request{
		Instruction: fmt.Sprintf(confirmationInstruction, trip),
		Text:        string(trip),
		Temperature: 0.5,
		MaxTokens:   120,
	})
	if err != nil || !plainSentence(raw) {
		return fallback
	}
	lower := strings.ToLower(raw)
	if !strings.Contains(lower, strings.ToLower(s.Origin)) || !strings.Contains(lower, strings.ToLower(s.Destination)) {
		c.log.Debug("confirmation dropped a city, using template")
		return fallback
	}
	return strings.TrimSpace(raw)
}

// GenerateFallback answers off-topic input.
func (c *Client) GenerateFallback(ctx context.Context, text, fallback string) string {
	raw, err := c.generate(ctx, c.cfg.Timeout, Request{
		Instruction: fallbackInstruction,
		Text:        text,
		Temperature: 0.7,
		MaxTokens:   80,
	})
	if err != nil || !plainSentence(raw) {
		return fallback
	}
	return strings.TrimSpace(raw)
}

func plainSentence(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.ContainsAny(s, "{}")
}

var (
	hhmmRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
	timeRe = regexp.MustCompile(`(\d{1,2})(?:[:.](\d{1,2}))?`)
)

// NormalizeTime converts a free-text time to HH:MM. ok is false when no time can be read.
func (c *Client) NormalizeTime(ctx context.Context, text string) (string, bool) {
	raw, err := c.generate(ctx, c.cfg.ClassifyTimeout, Request{
		Instruction: timeInstruction,
		Text:        text,
		Temperature: 0,
		MaxTokens:   10,
	})
	if err == nil {
		if v := strings.TrimSpace(raw); hhmmRe.MatchString(v) {
			return v, true
		}
	}
	return LocalTime(text)
}

// LocalTime reads the first "H", "H:MM" or "H.MM" in text.
func LocalTime(text string) (string, bool) {
	m := timeRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	h, _ := strconv.Atoi(m[1])
	mm := 0
	if m[2] != "" {
		mm, _ = strconv.Atoi(m[2])
	}
	if h > 23 || mm > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, mm), true
}

type HistoryAction string

const (
	HistoryNone   HistoryAction = "none"
	HistoryShow   HistoryAction = "show"
	HistoryCancel HistoryAction = "cancel"
)

type HistoryRequest struct {
	Action      HistoryAction
	Limit       int
	Destination string
}

const (
	defaultHistoryLimit = 5
	maxHistoryLimit     = 20
)

var (
	showCues   = []string{"my trips", "my bookings", "my history", "trip history", "booking history", "мои поездки", "мои брони", "моя история", "история поездок"}
	cancelCues = []string{"cancel trip", "cancel my trip", "cancel the trip", "отмени поездку", "отменить поездку", "отмена поездки"}
	limitRe    = regexp.MustCompile(`\b(\d{1,2})\b`)
)

// LocalHistoryRequest is the keyword reading of a history request.
func LocalHistoryRequest(text string) HistoryRequest {
	t := strings.ToLower(text)
	req := HistoryRequest{Action: HistoryNone, Limit: defaultHistoryLimit}
	switch {
	case containsAny(t, cancelCues):
		req.Action = HistoryCancel
	case containsAny(t, showCues):
		req.Action = HistoryShow
		if m := limitRe.FindStringSubmatch(t); m != nil {
			n, _ := strconv.Atoi(m[1])
			req.Limit = clampLimit(n)
		}
	}
	return req
}

// ParseHistoryRequest recognises "show my trips" and "cancel my trip to X". The model is only
// consulted when a keyword cue is present; its answer refines the keyword reading.
func (c *Client) ParseHistoryRequest(ctx context.Context, text string) HistoryRequest {
	req := LocalHistoryRequest(text)
	if req.Action == HistoryNone {
		return req
	}
	raw, err := c.generate(ctx, c.cfg.ClassifyTimeout, Request{
		Instruction: historyInstruction,
		Text:        text,
		Temperature: 0.1,
		MaxTokens:   100,
		JSON:        true,
	})
	if err != nil {
		c.log.Warn("history request parse failed, using keywords", zap.Error(err))
		return req
	}
	obj, ok := ExtractLastJSON(raw)
	if !ok {
		return req
	}
	if a, _ := obj["action"].(string); a == string(HistoryShow) || a == string(HistoryCancel) {
		req.Action = HistoryAction(a)
	}
	if n, ok := obj["limit"].(float64); ok {
		req.Limit = clampLimit(int(n))
	}
	if d, ok := obj["destination"].(string); ok {
		req.Destination = slots.Sanitize(d)
	}
	return req
}

func clampLimit(n int) int {
	if n < 1 {
		return defaultHistoryLimit
	}
	if n > maxHistoryLimit {
		return maxHistoryLimit
	}
	return n
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
