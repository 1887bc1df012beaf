package attendance

import (
	"sort"
	"time"
)

// LeaderboardRecord is the aggregate standing of one participant over all
// closed sessions: distinct attendance days and total time spent.
type LeaderboardRecord struct {
	ParticipantID ParticipantID
	Days          int
	TotalDuration time.Duration
}

// Standing is a leaderboard record together with its 1-based rank.
// Participants with identical (days, total) share a rank.
type Standing struct {
	Rank int
	LeaderboardRecord
}

// SortRecords orders records by attendance days descending, total duration
// descending, participant ID ascending as the final tie-break so output is
// deterministic.
func SortRecords(records []LeaderboardRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Days != records[j].Days {
			return records[i].Days > records[j].Days
		}
		if records[i].TotalDuration != records[j].TotalDuration {
			return records[i].TotalDuration > records[j].TotalDuration
		}
		return records[i].ParticipantID < records[j].ParticipantID
	})
}

// Rank assigns competition ranking ("1224") to sorted records: ties share a
// rank and the next distinct entry skips past them.
func Rank(records []LeaderboardRecord) []Standing {
	SortRecords(records)

	standings := make([]Standing, 0, len(records))
	for i, rec := range records {
		rank := i + 1
		if i > 0 {
			prev := standings[i-1]
			if prev.Days == rec.Days && prev.TotalDuration == rec.TotalDuration {
				rank = prev.Rank
			}
		}
		standings = append(standings, Standing{Rank: rank, LeaderboardRecord: rec})
	}
	return standings
}

// UserStatistics is the personal view: overall standing plus the attendance
// calendar of the current month.
type UserStatistics struct {
	Standing Standing
	Calendar CalendarGrid
}
