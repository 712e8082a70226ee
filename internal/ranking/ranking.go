// Package ranking aggregates approved transactions into tie-broken
// leaderboards and answers position and pagination queries over them.
package ranking

import (
	"sort"

	"gitlab.com/nandar/payquest/internal/models"
)

// Build aggregates approved records into a ranked leaderboard.
//
// Records are grouped per participant: transaction count, total amount
// and the earliest approval instant. The list is ordered by count
// descending, then by first approval ascending (the earlier achiever of
// the same count ranks higher); records that still compare equal keep
// their first-seen order. Ranks are dense: participants with equal
// counts share a rank, and the next distinct count takes the rank equal
// to its 1-based position in the sorted list.
//
// Build is pure. Calling it twice on the same snapshot yields identical
// ordering and rank assignments.
func Build(records []models.ApprovedRecord) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0)
	index := make(map[int64]int)

	for _, r := range records {
		i, ok := index[r.ParticipantID]
		if !ok {
			index[r.ParticipantID] = len(entries)
			entries = append(entries, models.LeaderboardEntry{
				ParticipantID:    r.ParticipantID,
				Name:             r.Name,
				TransactionCount: 1,
				TotalAmount:      r.Amount,
				FirstApprovedAt:  r.ApprovedAt,
			})
			continue
		}
		entries[i].TransactionCount++
		entries[i].TotalAmount = entries[i].TotalAmount.Add(r.Amount)
		if r.ApprovedAt.Before(entries[i].FirstApprovedAt) {
			entries[i].FirstApprovedAt = r.ApprovedAt
		}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].TransactionCount != entries[b].TransactionCount {
			return entries[a].TransactionCount > entries[b].TransactionCount
		}
		return entries[a].FirstApprovedAt.Before(entries[b].FirstApprovedAt)
	})

	for i := range entries {
		if i > 0 && entries[i].TransactionCount == entries[i-1].TransactionCount {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}

	return entries
}

// Position locates a participant in a built leaderboard. It returns nil
// when the participant has no entry, never a zero-rank row.
func Position(entries []models.LeaderboardEntry, participantID int64) *models.LeaderboardEntry {
	for i := range entries {
		if entries[i].ParticipantID == participantID {
			e := entries[i]
			return &e
		}
	}
	return nil
}
