// README: User-facing texts and message templates.
package dialogue

import (
	"fmt"
	"strings"

	"tripdesk/internal/modules/trip"
	"tripdesk/internal/routes"
	"tripdesk/internal/slots"
)

const (
	TextGreeting = "Hi! I can book a bus, train or plane trip for you. " +
		"Tell me where you are going, for example: \"tomorrow from Grodno to Minsk by bus\"."
	TextHelp = "Tell me the departure city, destination, date and transport (bus, train or plane) " +
		"in any order. I will confirm the details and pass your request to an operator.\n" +
		"Commands: /start to start over, /cancel to drop the current request.\n" +
		"Say \"my trips\" to see your bookings or \"cancel my trip to <city>\" to cancel one."
	TextCancelled          = "Okay, I have dropped this request. Write whenever you want to plan a new trip."
	TextServiceUnavailable = "Sorry, the service is temporarily unavailable. Please try again in a minute."
	TextFallback           = "I am a trip booking assistant. Tell me where and when you would like to travel."
	TextNoTrips            = "You have no trips yet."
	TextTripNotFound       = "I could not find an active trip to that city."
	TextAskCancelCity      = "Which trip should I cancel? Tell me its destination city."
	TextYesNo              = "Please answer yes or no."
	TextWhatToChange       = "What should I change?"
	TextAskSearch          = "Shall I look up route options for you? (yes/no)"
	TextRoutesNotFound     = "I could not find route options online, the operator will pick one for you."
	TextRequestSent        = "Your request has been sent to the operator. You will get a reply here soon."
)

var defaultQuestions = map[slots.Field]string{
	slots.FieldOrigin:      "Where are you travelling from?",
	slots.FieldDestination: "Where would you like to go?",
	slots.FieldDate:        "What date would you like to travel?",
	slots.FieldTransport:   "How would you like to travel: bus, train or plane?",
}

var extraQuestions = map[Extra]string{
	ExtraTime:       "What time would you prefer to depart?",
	ExtraBaggage:    "Will you have any baggage?",
	ExtraPassengers: "How many passengers are travelling?",
}

var fieldLabels = map[slots.Field]string{
	slots.FieldOrigin:      "departure city",
	slots.FieldDestination: "destination",
	slots.FieldDate:        "date",
	slots.FieldTransport:   "transport",
}

// DefaultQuestion is the template question for f.
func DefaultQuestion(f slots.Field) string { return defaultQuestions[f] }

func unsureText(f slots.Field, value string) string {
	if f == slots.FieldOrigin || f == slots.FieldDestination {
		return fmt.Sprintf("I don't know the city %q. Please name it differently or pick a nearby larger city.", value)
	}
	return fmt.Sprintf("I'm not sure I got the %s right (%s).", fieldLabels[f], value)
}

// changesText reports corrections, e.g. "Updated departure city to Kazan, date to 2025-08-01."
func changesText(c slots.ChangeSet) string {
	parts := make([]string, 0, len(c))
	for _, f := range c.Fields() {
		v := c[f]
		if f == slots.FieldTransport {
			v = slots.DisplayTransport(slots.Transport(v))
		}
		parts = append(parts, fmt.Sprintf("%s to %s", fieldLabels[f], v))
	}
	return "Updated " + strings.Join(parts, ", ") + "."
}

// confirmationTemplate is used when the generated confirmation is unavailable.
func confirmationTemplate(s slots.SlotSet) string {
	return fmt.Sprintf("Let me check: from %s to %s on %s by %s. Is that right?",
		s.Origin, s.Destination, s.Date, slots.DisplayTransport(s.Transport))
}

func historyText(trips []trip.Trip) string {
	var b strings.Builder
	b.WriteString("Your trips:")
	for _, t := range trips {
		fmt.Fprintf(&b, "\n#%d: %s → %s %s %s [%s]", t.ID, t.Origin, t.Destination, t.Date, t.Transport, t.Status)
	}
	return b.String()
}

func tripCancelledText(t *trip.Trip) string {
	return fmt.Sprintf("Trip #%d to %s on %s is cancelled.", t.ID, t.Destination, t.Date)
}

func routesText(opts []routes.Option) string {
	var b strings.Builder
	b.WriteString("Here is what I found:")
	for _, o := range opts {
		fmt.Fprintf(&b, "\n%s: %s", o.Title, o.URL)
	}
	return b.String()
}
