package roster

import "campusline/internal/domain"

// Placeholder values substituted when a join or a name resolution has no
// match. These are display contracts, not error states.
const (
	Placeholder     = "—"
	UnknownUserName = "未知用户"
	SignedLabel     = "已报名"
)

// Normalize collapses the two wire spellings of a signup record into the
// canonical shape. The canonical field wins when both are present; when both
// are absent the reference stays zero-valued and the join treats the row as
// unmatched rather than failing.
func Normalize(raw domain.RawSignup) domain.Signup {
	s := domain.Signup{
		ID:     raw.ID,
		Status: raw.Status,
	}
	switch {
	case raw.ActivityID != nil:
		s.ActivityID = *raw.ActivityID
	case raw.AltActivityID != nil:
		s.ActivityID = *raw.AltActivityID
	}
	switch {
	case raw.UserID != nil:
		s.UserID = *raw.UserID
	case raw.AltUserID != nil:
		s.UserID = *raw.AltUserID
	}
	if raw.SignupTime != nil {
		s.SignupTime = *raw.SignupTime
	}
	return s
}

// NormalizeAll normalizes a full wire listing, preserving order.
func NormalizeAll(raws []domain.RawSignup) []domain.Signup {
	signups := make([]domain.Signup, len(raws))
	for i, raw := range raws {
		signups[i] = Normalize(raw)
	}
	return signups
}
