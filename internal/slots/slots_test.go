// README: Tests for the slot model, text helpers, date normalizer and pre-extractor.
package slots

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-07-28 is a Monday.
func fixedNow() time.Time { return time.Date(2025, 7, 28, 10, 0, 0, 0, time.UTC) }

func newTestDates() *DateNormalizer { return NewDateNormalizer(time.UTC, fixedNow) }

func TestSlotSet_SetClearsAndClamps(t *testing.T) {
	var s SlotSet
	s.Set(FieldOrigin, "Minsk", 1.7)
	assert.Equal(t, 1.0, s.Conf(FieldOrigin))
	s.Set(FieldDestination, "Grodno", -2)
	assert.Equal(t, 0.0, s.Conf(FieldDestination))

	s.Set(FieldOrigin, "", 0.9)
	assert.Empty(t, s.Origin)
	assert.Equal(t, 0.0, s.Conf(FieldOrigin))
	assert.Equal(t, []Field{FieldOrigin, FieldDate, FieldTransport}, s.Missing())
}

func TestSlotSet_ConfDefaultsToOneWhenUnrecorded(t *testing.T) {
	s := SlotSet{Date: "2025-08-01"}
	assert.Equal(t, 1.0, s.Conf(FieldDate))
	assert.Equal(t, 0.0, s.Conf(FieldOrigin))
}

func TestSlotSet_LowConfidenceInQuestionOrder(t *testing.T) {
	var s SlotSet
	s.Set(FieldTransport, "bus", 0.2)
	s.Set(FieldDestination, "Lida", 0)
	f, ok := s.LowConfidence(0.5)
	require.True(t, ok)
	assert.Equal(t, FieldDestination, f)

	s.Set(FieldDestination, "Minsk", 1)
	f, ok = s.LowConfidence(0.5)
	require.True(t, ok)
	assert.Equal(t, FieldTransport, f)

	_, ok = s.LowConfidence(0.1)
	assert.False(t, ok)
}

func TestSlotSet_CloneIsIndependent(t *testing.T) {
	var s SlotSet
	s.Set(FieldOrigin, "Minsk", 0.8)
	c := s.Clone()
	c.Set(FieldOrigin, "Grodno", 0.3)
	assert.Equal(t, "Minsk", s.Origin)
	assert.Equal(t, 0.8, s.Conf(FieldOrigin))
}

func TestChangeSet_FieldsInQuestionOrder(t *testing.T) {
	c := ChangeSet{FieldTransport: "train", FieldOrigin: "Minsk", FieldDate: "2025-08-01"}
	assert.Equal(t, []Field{FieldOrigin, FieldDate, FieldTransport}, c.Fields())
}

func TestSanitize(t *testing.T) {
	for _, v := range []string{"", "  ", "null", "None", "N/A", "unknown", "неизвестно", "-"} {
		assert.Empty(t, Sanitize(v), v)
	}
	assert.Equal(t, "Minsk", Sanitize(" Minsk "))
}

func TestParseTransport(t *testing.T) {
	cases := map[string]Transport{
		"by bus please":            TransportBus,
		"на автобусе":              TransportBus,
		"маршрутка":                TransportBus,
		"I'd rather take a train":  TransportTrain,
		"поездом":                  TransportTrain,
		"по ж/д":                   TransportTrain,
		"want to fly":              TransportPlane,
		"самолётом":                TransportPlane,
		"no idea":                  "",
		"business trip to Moscow":  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseTransport(in), in)
	}
}

func TestNextWeekday(t *testing.T) {
	today := fixedNow().Truncate(24 * time.Hour)
	assert.Equal(t, "2025-08-01", NextWeekday(today, time.Friday).Format(ISODate))
	assert.Equal(t, "2025-08-03", NextWeekday(today, time.Sunday).Format(ISODate))
	// Same weekday means next week.
	assert.Equal(t, "2025-08-04", NextWeekday(today, time.Monday).Format(ISODate))
}

func TestDateNormalizer_Normalize(t *testing.T) {
	n := newTestDates()
	cases := map[string]string{
		"on Friday":          "2025-08-01",
		"в пятницу":          "2025-08-01",
		"sunday":             "2025-08-03",
		"tomorrow":           "2025-07-29",
		"завтра утром":       "2025-07-29",
		"послезавтра":        "2025-07-30",
		"day after tomorrow": "2025-07-30",
		"2025-08-15":         "2025-08-15",
		"15.08":              "2025-08-15",
		"10.07":              "2026-07-10",
		"15.08.2025":         "2025-08-15",
		"5 August":           "2025-08-05",
		"August 5th":         "2025-08-05",
		"5 августа":          "2025-08-05",
		"31.06":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, n.Normalize(in), in)
	}
}

func TestDateNormalizer_ShortWeekdaysNeedContext(t *testing.T) {
	n := newTestDates()
	cases := map[string]string{
		"on sat":   "2025-08-02",
		"next wed": "2025-07-30",
		"fri":      "2025-08-01",
	}
	for in, want := range cases {
		assert.Equal(t, want, n.Normalize(in), in)
	}

	for _, in := range []string{
		"we sat down, to Minsk from Grodno by bus",
		"the sun is out",
		"I may go to Minsk",
		"wed like a bus to Minsk",
	} {
		assert.Empty(t, n.Normalize(in), in)
		assert.False(t, n.HasCue(in), in)
	}
}

func TestDateNormalizer_PastDateIsACueButNotUsable(t *testing.T) {
	n := newTestDates()
	assert.Empty(t, n.Normalize("2025-07-01"))
	assert.True(t, n.HasCue("2025-07-01"))
	assert.False(t, n.HasCue("hello there"))
}

func TestDateNormalizer_Validate(t *testing.T) {
	n := newTestDates()
	_, ok := n.Validate("2025-07-27")
	assert.False(t, ok)
	d, ok := n.Validate("2025-07-28")
	assert.True(t, ok)
	assert.Equal(t, "2025-07-28", d)
	_, ok = n.Validate("next week")
	assert.False(t, ok)
}

func TestVocabulary_LookupAliasesAndInflections(t *testing.T) {
	v := NewVocabulary(DefaultCities, "Lida")
	cases := map[string]string{
		"Minsk":            "Minsk",
		"минск":            "Minsk",
		"Минске":           "Minsk",
		"питер":            "Saint Petersburg",
		"St. Petersburg":   "Saint Petersburg",
		"Нижний Новгород":  "Nizhny Novgorod",
		"казани":           "Kazan",
		"lida":             "Lida",
	}
	for in, want := range cases {
		got, ok := v.Lookup(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := v.Lookup("Atlantis")
	assert.False(t, ok)
}

func TestVocabulary_Mentions(t *testing.T) {
	v := NewVocabulary(DefaultCities)
	assert.True(t, v.Mentions("хочу в Минск", "Minsk"))
	assert.True(t, v.Mentions("to minsk", "Minsk"))
	assert.True(t, v.Mentions("едем в Лиду", "Лида"))
	assert.False(t, v.Mentions("tomorrow please", "Minsk"))
}

type stubDirectory struct {
	calls int
	known map[string]string
}

func (d *stubDirectory) LookupCity(_ context.Context, name string) (string, bool, error) {
	d.calls++
	c, ok := d.known[name]
	return c, ok, nil
}

func TestValidator_CityUsesDirectoryAndCaches(t *testing.T) {
	dir := &stubDirectory{known: map[string]string{"Lida": "Lida"}}
	v := NewValidator(NewVocabulary(DefaultCities), dir, 8, nil)

	name, ok := v.City(context.Background(), "москва")
	assert.True(t, ok)
	assert.Equal(t, "Moscow", name)
	assert.Equal(t, 0, dir.calls)

	name, ok = v.City(context.Background(), "Lida")
	assert.True(t, ok)
	assert.Equal(t, "Lida", name)

	_, ok = v.City(context.Background(), "Atlantis")
	assert.False(t, ok)
	_, ok = v.City(context.Background(), "atlantis")
	assert.False(t, ok)
	assert.Equal(t, 2, dir.calls)

	_, ok = v.City(context.Background(), "null")
	assert.False(t, ok)
}

func TestValidator_Transport(t *testing.T) {
	v := NewValidator(NewVocabulary(DefaultCities), nil, 0, nil)
	for in, want := range map[string]Transport{"bus": TransportBus, "Train": TransportTrain, "самолет": TransportPlane} {
		got, ok := v.Transport(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := v.Transport("horse")
	assert.False(t, ok)
	_, ok = v.Transport("none")
	assert.False(t, ok)
}

func TestExtractor_Extract(t *testing.T) {
	dates := newTestDates()
	e := NewExtractor(NewVocabulary(DefaultCities), dates)

	tests := []struct {
		in   string
		want SlotSet
	}{
		{
			in:   "tomorrow to Minsk by bus from Grodno",
			want: SlotSet{Origin: "Grodno", Destination: "Minsk", Date: "2025-07-29", Transport: TransportBus},
		},
		{
			in:   "Завтра из Гродно в Минск на автобусе",
			want: SlotSet{Origin: "Grodno", Destination: "Minsk", Date: "2025-07-29", Transport: TransportBus},
		},
		{
			in:   "from Saint Petersburg to Moscow on Friday by train",
			want: SlotSet{Origin: "Saint Petersburg", Destination: "Moscow", Date: "2025-08-01", Transport: TransportTrain},
		},
		{
			in:   "I want to go by train on Friday",
			want: SlotSet{Date: "2025-08-01", Transport: TransportTrain},
		},
		{
			in:   "from Kazan",
			want: SlotSet{},
		},
		{
			in:   "from Lida to Minsk",
			want: SlotSet{Origin: "Lida", Destination: "Minsk"},
		},
		{
			in:   "we sat down, to Minsk from Grodno by bus",
			want: SlotSet{Origin: "Grodno", Destination: "Minsk", Transport: TransportBus},
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := e.Extract(tt.in)
			assert.Equal(t, tt.want.Origin, got.Origin)
			assert.Equal(t, tt.want.Destination, got.Destination)
			assert.Equal(t, tt.want.Date, got.Date)
			assert.Equal(t, tt.want.Transport, got.Transport)
			for _, f := range Fields {
				if got.Get(f) != "" {
					assert.Equal(t, 1.0, got.Conf(f), f)
				}
			}
		})
	}
}

func TestVocabulary_Find(t *testing.T) {
	v := NewVocabulary(DefaultCities)
	c, ok := v.Find("cancel my trip to Нижний Новгород please")
	assert.True(t, ok)
	assert.Equal(t, "Nizhny Novgorod", c)
	_, ok = v.Find("cancel my trip")
	assert.False(t, ok)
}
