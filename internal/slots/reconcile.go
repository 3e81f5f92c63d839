// README: Slot reconciler; merges one utterance into the slot set with grounding and role checks.
package slots

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// escalateBelow is the number of heuristic fields under which the remote extractor is consulted.
const escalateBelow = 3

// RemoteExtractor is the NLU extraction step. It never fails; unknown fields come back empty.
type RemoteExtractor interface {
	Extract(ctx context.Context, text, priorQuestion string) SlotSet
}

// Question is the bot prompt the user is answering.
type Question struct {
	Field Field  `json:"field,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Primed returns the slot the question asked for, falling back to keywords in its text.
func (q Question) Primed() Field {
	if q.Field != "" {
		return q.Field
	}
	t := fold(q.Text)
	switch {
	case t == "":
		return ""
	case containsAny(t, "from", "откуда", "из какого", "отправлени"):
		return FieldOrigin
	case containsAny(t, "where to", "destination", "куда", "назначени"):
		return FieldDestination
	case containsAny(t, "date", "when", "дат", "когда"):
		return FieldDate
	case containsAny(t, "transport", "bus, train", "транспорт"):
		return FieldTransport
	}
	return ""
}

type Reconciler struct {
	extractor *Extractor
	remote    RemoteExtractor
	validator *Validator
	dates     *DateNormalizer
	log       *zap.Logger
}

func NewReconciler(extractor *Extractor, remote RemoteExtractor, validator *Validator, dates *DateNormalizer, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{extractor: extractor, remote: remote, validator: validator, dates: dates, log: log}
}

// Reconcile merges utterance into current and reports corrections of previously known values.
// current is not modified.
func (r *Reconciler) Reconcile(ctx context.Context, current SlotSet, utterance string, prior Question) (SlotSet, ChangeSet) {
	pre := r.extractor.Extract(utterance)
	r.checkCities(ctx, &pre)
	cand := pre.Clone()

	var remote SlotSet
	escalated := pre.Filled() < escalateBelow || conflicts(current, pre)
	if escalated {
		remote = r.remote.Extract(ctx, utterance, prior.Text)
		cand = r.combine(ctx, pre, remote, utterance, prior)
	}

	date, conf := r.dates.Normalize(utterance), 1.0
	if date == "" && escalated && (r.dates.HasCue(utterance) || prior.Primed() == FieldDate) {
		if d, ok := r.dates.Validate(Sanitize(remote.Date)); ok {
			date, conf = d, remote.Conf(FieldDate)
		}
	}
	cand.Set(FieldDate, date, conf)

	return merge(current, cand)
}

// ApplyCompletion fills fields that are still unknown from a completion result.
// Values pass the same grounding and validation as extraction and never overwrite known fields.
func (r *Reconciler) ApplyCompletion(ctx context.Context, current, update SlotSet, utterance string, prior Question) SlotSet {
	var cand SlotSet
	if t, ok := r.validator.Transport(update.Get(FieldTransport)); ok {
		cand.Set(FieldTransport, string(t), update.Conf(FieldTransport))
	}
	for _, c := range r.cities(ctx, update, utterance, prior) {
		cand.Set(c.slot, c.name, c.conf)
	}
	if r.dates.HasCue(utterance) || prior.Primed() == FieldDate {
		if d, ok := r.dates.Validate(Sanitize(update.Date)); ok {
			cand.Set(FieldDate, d, update.Conf(FieldDate))
		}
	}

	next := current.Clone()
	for _, f := range current.Missing() {
		if v := cand.Get(f); v != "" {
			next.Set(f, v, cand.Conf(f))
		}
	}
	if next.Origin != "" && strings.EqualFold(next.Origin, next.Destination) {
		if current.Origin == "" {
			next.Set(FieldOrigin, "", 0)
		} else {
			next.Set(FieldDestination, "", 0)
		}
	}
	return next
}

// checkCities runs heuristic cities through the validator. They were read from the
// utterance, so an unknown one stays with confidence 0 and the dialogue asks again.
func (r *Reconciler) checkCities(ctx context.Context, s *SlotSet) {
	for _, f := range []Field{FieldOrigin, FieldDestination} {
		raw := s.Get(f)
		if raw == "" {
			continue
		}
		if name, ok := r.validator.City(ctx, raw); ok {
			s.Set(f, name, 1)
			continue
		}
		r.log.Debug("unknown heuristic city", zap.String("field", string(f)), zap.String("value", raw))
		s.Set(f, titleCase(raw), 0)
	}
}

func conflicts(current, pre SlotSet) bool {
	for _, f := range Fields {
		a, b := current.Get(f), pre.Get(f)
		if a != "" && b != "" && !strings.EqualFold(a, b) {
			return true
		}
	}
	return false
}

type cityCandidate struct {
	name     string
	slot     Field
	assigned Field
	conf     float64
	pinned   bool
}

// combine keeps heuristic values and fills the rest from the remote result after filtering.
func (r *Reconciler) combine(ctx context.Context, pre, remote SlotSet, utterance string, prior Question) SlotSet {
	out := pre.Clone()

	if out.Transport == "" {
		if t, ok := r.validator.Transport(remote.Get(FieldTransport)); ok {
			out.Set(FieldTransport, string(t), remote.Conf(FieldTransport))
		}
	}

	if out.Origin != "" && out.Destination != "" {
		return out
	}
	for _, c := range r.cities(ctx, remote, utterance, prior) {
		out.Set(c.slot, c.name, c.conf)
	}
	return out
}

// cities applies the grounding filter and role resolution to the remote origin and destination.
func (r *Reconciler) cities(ctx context.Context, remote SlotSet, utterance string, prior Question) []cityCandidate {
	vocab := r.validator.Vocabulary()
	primed := prior.Primed()

	var cands []cityCandidate
	for _, f := range []Field{FieldOrigin, FieldDestination} {
		raw := Sanitize(remote.Get(f))
		if raw == "" {
			continue
		}
		grounded := vocab.Mentions(utterance, raw)
		if !grounded && primed != f {
			r.log.Debug("dropping ungrounded city", zap.String("field", string(f)), zap.String("value", raw))
			continue
		}
		name, known := r.validator.City(ctx, raw)
		conf := remote.Conf(f)
		switch {
		case known && grounded:
			conf = 1
		case known:
		case grounded:
			// The user said it but nobody knows it; keep it so the dialogue re-asks.
			name, conf = titleCase(raw), 0
		default:
			continue
		}
		if len(cands) == 1 && strings.EqualFold(cands[0].name, name) {
			continue
		}
		cands = append(cands, cityCandidate{name: name, slot: f, assigned: f, conf: conf})
	}

	for i := range cands {
		if role := vocab.prepositionRole(utterance, cands[i].name); role != "" {
			cands[i].slot, cands[i].pinned = role, true
		}
	}

	switch len(cands) {
	case 1:
		if !cands[0].pinned {
			switch {
			case primed == FieldOrigin || primed == FieldDestination:
				cands[0].slot = primed
			case hasFromWord(utterance):
				cands[0].slot = FieldOrigin
			default:
				cands[0].slot = FieldDestination
			}
		}
	case 2:
		a, b := &cands[0], &cands[1]
		if a.slot == b.slot {
			switch {
			case a.pinned && !b.pinned:
				b.slot = otherCity(a.slot)
			case b.pinned && !a.pinned:
				a.slot = otherCity(b.slot)
			default:
				a.slot, b.slot = a.assigned, b.assigned
			}
		}
	}
	return cands
}

func otherCity(f Field) Field {
	if f == FieldOrigin {
		return FieldDestination
	}
	return FieldOrigin
}

// merge writes every known candidate value. Only corrections of known values enter the change set.
func merge(current, cand SlotSet) (SlotSet, ChangeSet) {
	next := current.Clone()
	changes := ChangeSet{}
	written := map[Field]bool{}
	for _, f := range Fields {
		v := cand.Get(f)
		if v == "" {
			continue
		}
		if prev := current.Get(f); prev != "" && !strings.EqualFold(prev, v) {
			changes[f] = v
		}
		next.Set(f, v, cand.Conf(f))
		written[f] = true
	}

	// No self-loop trips: the value written this turn wins over the stale one.
	if next.Origin != "" && strings.EqualFold(next.Origin, next.Destination) {
		stale := FieldOrigin
		if written[FieldOrigin] && !written[FieldDestination] {
			stale = FieldDestination
		}
		next.Set(stale, "", 0)
		delete(changes, stale)
	}
	return next, changes
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
