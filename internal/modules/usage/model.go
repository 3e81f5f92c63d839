package usage

import "errors"

// ErrQuotaExceeded is returned when a user has no chat turns left for the current month.
var ErrQuotaExceeded = errors.New("monthly chat quota exceeded")

// DefaultMonthlyQuota is the number of chat turns granted per month.
const DefaultMonthlyQuota = 300
