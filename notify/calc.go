package notify

import "time"

// DefaultLeadMinutes is used when an event carries no (or an invalid)
// reminder lead.
const DefaultLeadMinutes = 10

// FireTime computes the absolute time at which a reminder for an event
// starting at start should be presented. A non-positive lead falls back to
// DefaultLeadMinutes.
func FireTime(start time.Time, leadMinutes int) time.Time {
	if leadMinutes <= 0 {
		leadMinutes = DefaultLeadMinutes
	}
	return start.Add(-time.Duration(leadMinutes) * time.Minute)
}
