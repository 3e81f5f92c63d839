// README: Heuristic pre-extractor; keyword, date and preposition patterns with no external calls.
package slots

import "strings"

var (
	fromWords = wordSet("from", "из", "изо", "от")
	toWords   = wordSet("to", "в", "во", "до", "на")
	// stopWords end a captured city phrase.
	stopWords = wordSet(
		"by", "on", "via", "at", "in", "for", "with", "and", "the", "next", "this", "please",
		"around", "about", "early", "late", "morning", "evening", "night",
		"to", "from", "на", "в", "во", "из", "от", "до", "с", "к", "и", "по", "через",
		"утром", "вечером", "днем", "ночью", "пожалуйста",
	)
)

// Extractor is the heuristic pre-extractor.
type Extractor struct {
	vocab *Vocabulary
	dates *DateNormalizer
}

func NewExtractor(vocab *Vocabulary, dates *DateNormalizer) *Extractor {
	return &Extractor{vocab: vocab, dates: dates}
}

// Extract returns the fields it can read from text. Confidence is 1.0 for every found field.
func (e *Extractor) Extract(text string) SlotSet {
	var out SlotSet
	if t := ParseTransport(text); t != "" {
		out.Set(FieldTransport, string(t), 1)
	}
	if d := e.dates.Normalize(text); d != "" {
		out.Set(FieldDate, d, 1)
	}
	if origin, dest, ok := e.route(text); ok {
		out.Set(FieldOrigin, origin, 1)
		out.Set(FieldDestination, dest, 1)
	}
	return out
}

// route matches "from X ... to Y" and "to Y ... from X".
func (e *Extractor) route(text string) (string, string, bool) {
	toks := tokenize(text)
	for i, t := range toks {
		if !fromWords[t.word] {
			continue
		}
		origin, end, ok := e.cityAfter(text, toks, i)
		if !ok {
			continue
		}
		for j := end; j < len(toks); j++ {
			if !toWords[toks[j].word] {
				continue
			}
			if dest, _, ok := e.cityAfter(text, toks, j); ok && !strings.EqualFold(dest, origin) {
				return origin, dest, true
			}
		}
	}
	for j, t := range toks {
		if !toWords[t.word] {
			continue
		}
		dest, end, ok := e.cityAfter(text, toks, j)
		if !ok {
			continue
		}
		for i := end; i < len(toks); i++ {
			if !fromWords[toks[i].word] {
				continue
			}
			if origin, _, ok := e.cityAfter(text, toks, i); ok && !strings.EqualFold(dest, origin) {
				return origin, dest, true
			}
		}
	}
	return "", "", false
}

// cityAfter reads the city phrase that follows the preposition at toks[at].
// It returns the resolved name and the index just past the phrase.
func (e *Extractor) cityAfter(text string, toks []token, at int) (string, int, bool) {
	start := at + 1
	if start >= len(toks) || breaksPhrase(text, toks[at], toks[start]) {
		return "", 0, false
	}
	if c, n, ok := e.vocab.lookupPhrase(toks[start:]); ok {
		return c, start + n, true
	}
	// Unknown names must at least look like a proper noun.
	end := start
	for end < len(toks) && end-start < 3 {
		w := toks[end]
		if end > start && breaksPhrase(text, toks[end-1], w) {
			break
		}
		if stopWords[w.word] || isDateWord(w.word) || isTransportWord(w.word) || !capitalized(w.raw) {
			break
		}
		end++
	}
	if end == start {
		return "", 0, false
	}
	return strings.TrimSpace(text[toks[start].start:toks[end-1].end]), end, true
}

// prepositionRole looks at the word before each mention of city and reports the role it implies.
func (v *Vocabulary) prepositionRole(utterance, city string) Field {
	toks := tokenize(utterance)
	canonical, known := v.Lookup(city)
	for i := 1; i < len(toks); i++ {
		c, _, ok := v.lookupPhrase(toks[i:])
		match := ok && known && c == canonical
		if !match {
			match = strings.HasPrefix(toks[i].word, stem(fold(firstWord(city))))
		}
		if !match {
			continue
		}
		switch prev := toks[i-1].word; {
		case fromWords[prev]:
			return FieldOrigin
		case toWords[prev]:
			return FieldDestination
		}
	}
	return ""
}

func hasFromWord(utterance string) bool {
	for _, t := range tokenize(utterance) {
		if fromWords[t.word] {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}
