package roster

import "campusline/internal/domain"

// BuildRows joins normalized signups with the activity catalog and the name
// cache into display rows. One row per signup, input order preserved. A miss
// on either side degrades to a placeholder for that field; it never drops the
// row and never errors. Re-running with an unchanged cache yields identical
// output; a cache update only changes the name fields of rows that were
// previously unresolved.
func BuildRows(signups []domain.Signup, activities []domain.Activity, names *NameCache) []domain.RosterRow {
	byID := make(map[int64]domain.Activity, len(activities))
	for _, a := range activities {
		byID[a.ActivityID] = a
	}
	rows := make([]domain.RosterRow, 0, len(signups))
	for _, s := range signups {
		row := domain.RosterRow{
			ID:           s.ID,
			ActivityID:   s.ActivityID,
			ActivityName: Placeholder,
			UserID:       s.UserID,
			UserName:     names.DisplayName(s.UserID),
			Status:       s.Status,
			StatusLabel:  statusLabel(s.Status),
			SignupTime:   s.SignupTime,
		}
		if a, ok := byID[s.ActivityID]; ok {
			row.ActivityName = a.Name
		}
		rows = append(rows, row)
	}
	return rows
}

// statusLabel localizes the one signup status the console understands;
// backend-defined values pass through untouched.
func statusLabel(status string) string {
	if status == domain.SignupStatusSigned {
		return SignedLabel
	}
	return status
}

// UserIDs returns the user reference of every signup, in order, duplicates
// included; NameCache.Missing handles the set-based dedup.
func UserIDs(signups []domain.Signup) []string {
	ids := make([]string, 0, len(signups))
	for _, s := range signups {
		ids = append(ids, s.UserID)
	}
	return ids
}
