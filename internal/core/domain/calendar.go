package domain

import (
	"errors"
	"sort"
	"time"
)

const CalendarGridCells = 42

var ErrInvalidMonth = errors.New("invalid month (must be YYYY-MM)")

// CalendarItem is one care action shown on a calendar day.
type CalendarItem struct {
	ReminderID    string   `json:"reminder_id,omitempty"`
	OccurrenceID  string   `json:"occurrence_id,omitempty"`
	PlantID       string   `json:"plant_id"`
	CareType      CareType `json:"care_type"`
	CompletedDate *Date    `json:"completed_date,omitempty"`
}

type CalendarDay struct {
	Date           Date           `json:"date"`
	InCurrentMonth bool           `json:"in_current_month"`
	IsToday        bool           `json:"is_today"`
	IsSelected     bool           `json:"is_selected"`
	CompletedCount int            `json:"completed_count"`
	PendingCount   int            `json:"pending_count"`
	FutureCount    int            `json:"future_count"`
	Completed      []CalendarItem `json:"completed"`
	Pending        []CalendarItem `json:"pending"`
	Future         []CalendarItem `json:"future"`
}

func (d CalendarDay) Total() int {
	return d.CompletedCount + d.PendingCount + d.FutureCount
}

type CalendarMonth struct {
	Year        int           `json:"year"`
	Month       time.Month    `json:"month"`
	WindowStart Date          `json:"window_start"`
	WindowEnd   Date          `json:"window_end"`
	Today       Date          `json:"today"`
	Days        []CalendarDay `json:"days"`
	SelectedDay *CalendarDay  `json:"selected_day,omitempty"`
}

type CalendarInput struct {
	UserID   string
	Year     int
	Month    time.Month
	Selected *Date
}

// ParseMonth reads a YYYY-MM string.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, ErrInvalidMonth
	}
	return t.Year(), t.Month(), nil
}

// CalendarWindow returns the first and last day of the 6-week grid for a month.
// The grid starts on the Monday on or before the 1st.
func CalendarWindow(year int, month time.Month) (Date, Date) {
	first := NewDate(year, month, 1)
	offset := (int(first.Weekday()) + 6) % 7
	start := first.AddDays(-offset)
	return start, start.AddDays(CalendarGridCells - 1)
}

// BuildCalendarMonth merges ledger history with upcoming rule due dates into a day grid.
//
// Occurrences fill completed/pending. A rule contributes to future only when its next due
// date is today or later and it has no occurrence on that date yet; only the next due
// date of each rule is projected.
func BuildCalendarMonth(year int, month time.Month, today Date, selected *Date, occurrences []*TaskOccurrence, rules []*ReminderRule) *CalendarMonth {
	start, end := CalendarWindow(year, month)

	cal := &CalendarMonth{
		Year:        year,
		Month:       month,
		WindowStart: start,
		WindowEnd:   end,
		Today:       today,
		Days:        make([]CalendarDay, CalendarGridCells),
	}

	index := make(map[string]int, CalendarGridCells)
	for i := 0; i < CalendarGridCells; i++ {
		day := start.AddDays(i)
		index[day.String()] = i
		cal.Days[i] = CalendarDay{
			Date:           day,
			InCurrentMonth: day.Month() == month && day.Year() == year,
			IsToday:        day.Equal(today),
			Completed:      []CalendarItem{},
			Pending:        []CalendarItem{},
			Future:         []CalendarItem{},
		}
	}

	sortedOcc := make([]*TaskOccurrence, len(occurrences))
	copy(sortedOcc, occurrences)
	sort.SliceStable(sortedOcc, func(i, j int) bool {
		if !sortedOcc[i].ScheduledDate.Equal(sortedOcc[j].ScheduledDate) {
			return sortedOcc[i].ScheduledDate.Before(sortedOcc[j].ScheduledDate)
		}
		if sortedOcc[i].PlantID != sortedOcc[j].PlantID {
			return sortedOcc[i].PlantID < sortedOcc[j].PlantID
		}
		if sortedOcc[i].CareType != sortedOcc[j].CareType {
			return sortedOcc[i].CareType < sortedOcc[j].CareType
		}
		return sortedOcc[i].ReminderID < sortedOcc[j].ReminderID
	})

	filled := make(map[string]bool, len(sortedOcc))
	for _, o := range sortedOcc {
		i, ok := index[o.ScheduledDate.String()]
		if !ok {
			continue
		}
		filled[o.SlotKey()] = true

		item := CalendarItem{
			ReminderID:    o.ReminderID,
			OccurrenceID:  o.ID,
			PlantID:       o.PlantID,
			CareType:      o.CareType,
			CompletedDate: o.CompletedDate,
		}
		day := &cal.Days[i]
		if o.IsCompleted {
			day.Completed = append(day.Completed, item)
			day.CompletedCount++
		} else {
			day.Pending = append(day.Pending, item)
			day.PendingCount++
		}
	}

	sortedRules := make([]*ReminderRule, len(rules))
	copy(sortedRules, rules)
	sort.SliceStable(sortedRules, func(i, j int) bool {
		if sortedRules[i].PlantID != sortedRules[j].PlantID {
			return sortedRules[i].PlantID < sortedRules[j].PlantID
		}
		return sortedRules[i].CareType < sortedRules[j].CareType
	})

	for _, r := range sortedRules {
		if r.NextDueDate.Before(today) {
			continue
		}
		i, ok := index[r.NextDueDate.String()]
		if !ok {
			continue
		}
		if filled[SlotKey(r.ID, r.NextDueDate)] {
			continue
		}

		day := &cal.Days[i]
		day.Future = append(day.Future, CalendarItem{
			ReminderID: r.ID,
			PlantID:    r.PlantID,
			CareType:   r.CareType,
		})
		day.FutureCount++
	}

	pick := today
	if selected != nil && !selected.IsZero() {
		pick = *selected
	}
	if i, ok := index[pick.String()]; ok {
		cal.Days[i].IsSelected = true
		sel := cal.Days[i]
		cal.SelectedDay = &sel
	}

	return cal
}
