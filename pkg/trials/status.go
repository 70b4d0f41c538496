package trials

// Status is an overall recruitment status recognized by the
// ClinicalTrials.gov v2 studies endpoint.
type Status string

// The full set of overall statuses accepted by the API.
const (
	StatusActiveNotRecruiting     Status = "ACTIVE_NOT_RECRUITING"
	StatusCompleted               Status = "COMPLETED"
	StatusEnrollingByInvitation   Status = "ENROLLING_BY_INVITATION"
	StatusNotYetRecruiting        Status = "NOT_YET_RECRUITING"
	StatusRecruiting              Status = "RECRUITING"
	StatusSuspended               Status = "SUSPENDED"
	StatusTerminated              Status = "TERMINATED"
	StatusWithdrawn               Status = "WITHDRAWN"
	StatusAvailable               Status = "AVAILABLE"
	StatusNoLongerAvailable       Status = "NO_LONGER_AVAILABLE"
	StatusTemporarilyNotAvailable Status = "TEMPORARILY_NOT_AVAILABLE"
	StatusApprovedForMarketing    Status = "APPROVED_FOR_MARKETING"
	StatusWithheld                Status = "WITHHELD"
	StatusUnknown                 Status = "UNKNOWN"
)

// Statuses returns every known status value.
func Statuses() []Status {
	return []Status{
		StatusActiveNotRecruiting,
		StatusCompleted,
		StatusEnrollingByInvitation,
		StatusNotYetRecruiting,
		StatusRecruiting,
		StatusSuspended,
		StatusTerminated,
		StatusWithdrawn,
		StatusAvailable,
		StatusNoLongerAvailable,
		StatusTemporarilyNotAvailable,
		StatusApprovedForMarketing,
		StatusWithheld,
		StatusUnknown,
	}
}

// IsValid reports whether s is one of the known status values. The API is
// authoritative on validity: unknown values are still sent to it unchanged,
// IsValid only feeds a warning log.
func (s Status) IsValid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
