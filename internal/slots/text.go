// README: Tokenizer, placeholder sanitizing and transport keyword families.
package slots

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:[-'’][\p{L}\p{N}]+)*`)

type token struct {
	word  string // lower-cased, ё folded to е
	raw   string
	start int
	end   int
}

func tokenize(text string) []token {
	idx := wordRe.FindAllStringIndex(text, -1)
	out := make([]token, 0, len(idx))
	for _, p := range idx {
		raw := text[p[0]:p[1]]
		out = append(out, token{word: fold(raw), raw: raw, start: p[0], end: p[1]})
	}
	return out
}

func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "ё", "е")
}

// breaksPhrase reports whether the gap between two tokens holds sentence punctuation.
func breaksPhrase(text string, a, b token) bool {
	return strings.ContainsAny(text[a.end:b.start], ",.;!?()\n")
}

func capitalized(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

var placeholders = wordSet(
	"", "none", "null", "nil", "unknown", "n/a", "na", "-", "?", "unspecified", "not specified",
	"нет", "нету", "неизвестно", "не известно", "не указано",
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Sanitize maps placeholder tokens to the empty (unknown) value.
func Sanitize(v string) string {
	v = strings.TrimSpace(v)
	if placeholders[fold(v)] {
		return ""
	}
	return v
}

type keywordFamily struct {
	transport Transport
	exact     []string
	prefixes  []string
}

// Families are tried in order; the first family with a matching word wins.
var transportFamilies = []keywordFamily{
	{
		transport: TransportBus,
		exact:     []string{"bus", "buses", "coach", "бус", "бас"},
		prefixes:  []string{"автобус", "маршрутк", "atlas", "шкипер"},
	},
	{
		transport: TransportPlane,
		exact:     []string{"plane", "planes", "airplane", "flight", "flights", "fly", "flying", "air"},
		prefixes:  []string{"самол", "авиа", "лететь", "полет", "птичк", "aviasales"},
	},
	{
		transport: TransportTrain,
		exact:     []string{"train", "trains", "rail", "railway", "жд"},
		prefixes:  []string{"поезд", "электричк", "ржд", "сапсан", "ласточк"},
	},
}

var zhdRe = regexp.MustCompile(`(?i)ж\s*[./\\-]\s*д`)

// ParseTransport finds a transport keyword in free text. No match returns "".
func ParseTransport(text string) Transport {
	text = zhdRe.ReplaceAllString(text, "жд")
	toks := tokenize(text)
	for _, fam := range transportFamilies {
		for _, t := range toks {
			if fam.matches(t.word) {
				return fam.transport
			}
		}
	}
	return ""
}

func (f keywordFamily) matches(w string) bool {
	for _, e := range f.exact {
		if w == e {
			return true
		}
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(w, p) {
			return true
		}
	}
	return false
}

func isTransportWord(w string) bool {
	for _, fam := range transportFamilies {
		if fam.matches(w) {
			return true
		}
	}
	return false
}

// DisplayTransport renders a transport code for messages.
func DisplayTransport(t Transport) string {
	switch t {
	case TransportBus:
		return "bus"
	case TransportTrain:
		return "train"
	case TransportPlane:
		return "plane"
	}
	return string(t)
}
