// Package roster merges a classroom activity log with the class roster into
// per-student aggregates.
package roster

import (
	"maps"
	"math"
	"slices"
)

// ParseRoster extracts roster entries. Rows without an id or a name are
// skipped; repeated ids keep the first entry.
func ParseRoster(rows []Row) (entries []RosterEntry, skipped, duplicates int) {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		r := newFieldReader(row)
		id, name := r.get(FieldStudentID), r.get(FieldName)
		if id == "" || name == "" {
			skipped++
			continue
		}
		if _, dup := seen[id]; dup {
			duplicates++
			continue
		}
		seen[id] = struct{}{}
		entries = append(entries, RosterEntry{StudentID: id, Name: name})
	}
	return entries, skipped, duplicates
}

// ParseActivity extracts activity records. Rows without an id are skipped.
func ParseActivity(rows []Row) (records []ActivityRecord, skipped int) {
	for _, row := range rows {
		r := newFieldReader(row)
		id := r.get(FieldStudentID)
		if id == "" {
			skipped++
			continue
		}
		records = append(records, ActivityRecord{
			StudentID: id,
			Subject:   r.get(FieldSubject),
			Date:      normalizeDate(r.get(FieldDate)),
			Points:    parsePoints(r.get(FieldPoints)),
			Note:      r.get(FieldNote),
		})
	}
	return records, skipped
}

// tally accumulates one student's records before the aggregate is frozen.
type tally struct {
	entry     RosterEntry
	points    float64
	count     int
	correct   int
	incorrect int
	noScore   int
	daily     map[string]*Summary
	subjects  map[string]*Summary
}

func newTally(e RosterEntry) *tally {
	return &tally{
		entry:    e,
		daily:    make(map[string]*Summary),
		subjects: make(map[string]*Summary),
	}
}

func (t *tally) add(rec ActivityRecord) {
	t.count++
	if rec.Points != nil {
		t.points += *rec.Points
	}
	o := Classify(rec)
	switch o {
	case OutcomeCorrect:
		t.correct++
	case OutcomeIncorrect:
		t.incorrect++
	default:
		t.noScore++
	}
	if rec.Date != "" {
		bump(t.daily, rec.Date, o)
	}
	if rec.Subject != "" {
		bump(t.subjects, rec.Subject, o)
	}
}

func bump(m map[string]*Summary, key string, o Outcome) {
	s, ok := m[key]
	if !ok {
		s = &Summary{}
		m[key] = s
	}
	s.add(o)
}

func (t *tally) freeze() StudentAggregate {
	daily := freezeSummaries(t.daily)
	subjects := freezeSummaries(t.subjects)
	return StudentAggregate{
		StudentID:          t.entry.StudentID,
		Name:               t.entry.Name,
		TotalPoints:        t.points,
		ParticipationCount: t.count,
		CorrectAnswers:     t.correct,
		IncorrectAnswers:   t.incorrect,
		NoScoreRecords:     t.noScore,
		Subjects:           slices.Sorted(maps.Keys(subjects)),
		DailySummaries:     daily,
		SubjectSummaries:   subjects,
		Trend:              TrendFor(t.points, t.correct, t.incorrect),
		PerformancePattern: PatternFor(daily),
	}
}

func freezeSummaries(m map[string]*Summary) map[string]Summary {
	out := make(map[string]Summary, len(m))
	for k, s := range m {
		out[k] = *s
	}
	return out
}

// Merge joins activity rows to roster rows by student id.
func Merge(activityRows, rosterRows []Row) Dataset {
	entries, skippedRoster, dupRoster := ParseRoster(rosterRows)
	records, skippedActivity := ParseActivity(activityRows)

	stats := Stats{
		ActivityRows:        len(activityRows),
		SkippedActivityRows: skippedActivity,
		RosterRows:          len(rosterRows),
		SkippedRosterRows:   skippedRoster,
		DuplicateRosterIDs:  dupRoster,
	}

	byID := make(map[string]*tally, len(entries))
	for _, e := range entries {
		byID[e.StudentID] = newTally(e)
	}

	unmatched := make(map[string]struct{})
	for _, rec := range records {
		t, ok := byID[rec.StudentID]
		if !ok {
			stats.UnmatchedRecords++
			if _, seen := unmatched[rec.StudentID]; !seen {
				unmatched[rec.StudentID] = struct{}{}
				stats.UnmatchedIDs = append(stats.UnmatchedIDs, rec.StudentID)
			}
			continue
		}
		stats.MatchedRecords++
		t.add(rec)
	}

	ds := Dataset{
		MatchRate: matchRate(stats.MatchedRecords, len(records)),
		Stats:     stats,
	}
	for _, e := range entries {
		t := byID[e.StudentID]
		if t.count == 0 {
			ds.Inactive = append(ds.Inactive, InactiveStudent{StudentID: e.StudentID, Name: e.Name})
			continue
		}
		ds.Aggregates = append(ds.Aggregates, t.freeze())
	}
	return ds
}

// matchRate is matched/total as a whole percentage; 100 when total is 0.
func matchRate(matched, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(matched) / float64(total) * 100))
}
