// README: Known-city vocabulary and the city/transport validators.
package slots

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

type City struct {
	Name    string
	Aliases []string
}

// DefaultCities covers the routes the operators sell today.
var DefaultCities = []City{
	{Name: "Moscow", Aliases: []string{"msk", "мск", "москва", "moskva", "масква"}},
	{Name: "Saint Petersburg", Aliases: []string{"spb", "спб", "питер", "st. petersburg", "st petersburg", "petersburg", "санкт-петербург", "петербург"}},
	{Name: "Kazan", Aliases: []string{"казань"}},
	{Name: "Nizhny Novgorod", Aliases: []string{"nn", "нн", "нижний", "нижний новгород", "nizhniy novgorod"}},
	{Name: "Samara", Aliases: []string{"самара"}},
	{Name: "Sochi", Aliases: []string{"сочи"}},
	{Name: "Grodno", Aliases: []string{"гродно", "hrodna"}},
	{Name: "Minsk", Aliases: []string{"минск", "мінск"}},
	{Name: "Brest", Aliases: []string{"брест"}},
	{Name: "Vitebsk", Aliases: []string{"витебск"}},
	{Name: "Gomel", Aliases: []string{"гомель", "homel"}},
	{Name: "Mogilev", Aliases: []string{"могилев", "mahilyow"}},
	{Name: "Vilnius", Aliases: []string{"вильнюс"}},
	{Name: "Warsaw", Aliases: []string{"варшава", "warszawa"}},
	{Name: "Riga", Aliases: []string{"рига"}},
	{Name: "Yekaterinburg", Aliases: []string{"ekb", "екб", "екатеринбург", "ekaterinburg"}},
	{Name: "Novosibirsk", Aliases: []string{"новосибирск"}},
	{Name: "Voronezh", Aliases: []string{"воронеж"}},
	{Name: "Rostov-on-Don", Aliases: []string{"rostov", "ростов", "ростов-на-дону"}},
}

// Vocabulary resolves names, aliases and inflected forms to canonical city names.
type Vocabulary struct {
	exact map[string]string
	stems map[string]string
}

func NewVocabulary(cities []City, extra ...string) *Vocabulary {
	v := &Vocabulary{exact: map[string]string{}, stems: map[string]string{}}
	for _, c := range cities {
		v.add(c.Name, c.Name)
		for _, a := range c.Aliases {
			v.add(a, c.Name)
		}
	}
	for _, name := range extra {
		if name = strings.TrimSpace(name); name != "" {
			v.add(name, name)
		}
	}
	return v
}

func (v *Vocabulary) add(key, canonical string) {
	key = fold(key)
	v.exact[key] = canonical
	if !strings.Contains(key, " ") && len([]rune(key)) >= 4 {
		v.stems[stem(key)] = canonical
	}
}

// Lookup resolves raw to a canonical name.
func (v *Vocabulary) Lookup(raw string) (string, bool) {
	key := fold(strings.Trim(raw, " .,!?\"'«»"))
	if key == "" {
		return "", false
	}
	if c, ok := v.exact[key]; ok {
		return c, true
	}
	if strings.Contains(key, " ") || len([]rune(key)) < 4 {
		return "", false
	}
	c, ok := v.stems[stem(key)]
	return c, ok
}

// lookupPhrase resolves the longest leading run of up to three tokens.
func (v *Vocabulary) lookupPhrase(toks []token) (string, int, bool) {
	for n := min(3, len(toks)); n > 0; n-- {
		words := make([]string, n)
		for i := 0; i < n; i++ {
			words[i] = toks[i].word
		}
		if c, ok := v.Lookup(strings.Join(words, " ")); ok {
			return c, n, true
		}
	}
	return "", 0, false
}

// Find returns the first known city mentioned in text.
func (v *Vocabulary) Find(text string) (string, bool) {
	toks := tokenize(text)
	for i := range toks {
		if c, _, ok := v.lookupPhrase(toks[i:]); ok {
			return c, true
		}
	}
	return "", false
}

// Mentions reports whether city is grounded in the utterance by substring, alias or inflected form.
func (v *Vocabulary) Mentions(utterance, city string) bool {
	folded := fold(utterance)
	if c := fold(city); c != "" && strings.Contains(folded, c) {
		return true
	}
	canonical, known := v.Lookup(city)
	toks := tokenize(utterance)
	for i := range toks {
		c, _, ok := v.lookupPhrase(toks[i:])
		if !ok {
			continue
		}
		if known && c == canonical {
			return true
		}
		if strings.EqualFold(c, city) {
			return true
		}
	}
	if !known {
		s := stem(fold(city))
		for _, t := range toks {
			if len([]rune(t.word)) >= 4 && stem(t.word) == s {
				return true
			}
		}
	}
	return false
}

// stem trims up to two trailing vowels or soft signs, enough for Russian case endings.
func stem(w string) string {
	r := []rune(w)
	for i := 0; i < 2 && len(r) > 3; i++ {
		if !strings.ContainsRune("аеиоуыяюйьэ", r[len(r)-1]) {
			break
		}
		r = r[:len(r)-1]
	}
	return string(r)
}

// CityDirectory is a remote source of city names, such as a route provider's city search.
type CityDirectory interface {
	LookupCity(ctx context.Context, name string) (string, bool, error)
}

type cityHit struct {
	name string
	ok   bool
}

// Validator checks candidate values against known vocabularies.
type Validator struct {
	vocab *Vocabulary
	dir   CityDirectory
	cache *lru.Cache[string, cityHit]
	log   *zap.Logger
}

// NewValidator builds a validator. dir may be nil.
func NewValidator(vocab *Vocabulary, dir CityDirectory, cacheSize int, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, _ := lru.New[string, cityHit](cacheSize)
	return &Validator{vocab: vocab, dir: dir, cache: cache, log: log}
}

func (v *Validator) Vocabulary() *Vocabulary { return v.vocab }

// City returns the canonical name of raw, or false when nobody knows the city.
func (v *Validator) City(ctx context.Context, raw string) (string, bool) {
	raw = Sanitize(raw)
	if raw == "" {
		return "", false
	}
	if c, ok := v.vocab.Lookup(raw); ok {
		return c, true
	}
	if v.dir == nil {
		return "", false
	}
	key := fold(raw)
	if hit, ok := v.cache.Get(key); ok {
		return hit.name, hit.ok
	}
	name, ok, err := v.dir.LookupCity(ctx, raw)
	if err != nil {
		v.log.Warn("city directory lookup failed", zap.String("city", raw), zap.Error(err))
		return "", false
	}
	v.cache.Add(key, cityHit{name: name, ok: ok})
	return name, ok
}

// Transport accepts canonical codes and keyword forms such as "автобус".
func (v *Validator) Transport(raw string) (Transport, bool) {
	raw = Sanitize(raw)
	if raw == "" {
		return "", false
	}
	if t, ok := ParseTransportCode(raw); ok {
		return t, true
	}
	if t := ParseTransport(raw); t != "" {
		return t, true
	}
	return "", false
}
