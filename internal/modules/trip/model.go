// README: Trip record handed to the operator, and its status flow.
package trip

import "time"

type Status string

const (
	StatusPending         Status = "pending"
	StatusAccepted        Status = "accepted"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusConfirmed       Status = "confirmed"
	StatusRejected        Status = "rejected"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusAccepted, StatusAwaitingPayment, StatusConfirmed, StatusRejected:
		return st, true
	}
	return "", false
}

type Trip struct {
	ID          int64     `json:"id"`
	UserKey     string    `json:"user"`
	UserName    string    `json:"user_name,omitempty"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Date        string    `json:"date"`
	Transport   string    `json:"transport"`
	Time        string    `json:"time,omitempty"`
	Baggage     string    `json:"baggage,omitempty"`
	Passengers  string    `json:"passengers,omitempty"`
	Status      Status    `json:"status"`
	Price       *string   `json:"price,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Active trips can still be cancelled by the traveller.
func (t Trip) Active() bool {
	return t.Status == StatusPending || t.Status == StatusAccepted
}

// AllowedTransitions represents the operator workflow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:         {StatusAccepted, StatusRejected},
	StatusAccepted:        {StatusAwaitingPayment, StatusRejected},
	StatusAwaitingPayment: {StatusConfirmed, StatusRejected},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
