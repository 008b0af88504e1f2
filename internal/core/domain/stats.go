package domain

import "sort"

type StatsInput struct {
	UserID    string
	StartDate Date
	EndDate   Date
}

// CareStat summarizes the ledger for one (plant, care type) pair.
type CareStat struct {
	PlantID          string   `json:"plant_id"`
	CareType         CareType `json:"care_type"`
	Scheduled        int      `json:"scheduled"`
	Completed        int      `json:"completed"`
	OnTime           int      `json:"on_time"`
	CompletionRate   float64  `json:"completion_rate"`
	AverageDelayDays float64  `json:"average_delay_days"`
}

type CareStats struct {
	StartDate      Date       `json:"start_date"`
	EndDate        Date       `json:"end_date"`
	TotalScheduled int        `json:"total_scheduled"`
	TotalCompleted int        `json:"total_completed"`
	OverallRate    float64    `json:"overall_rate"`
	Stats          []CareStat `json:"stats"`
}

// BuildCareStats aggregates occurrences scheduled in [start, end]. An occurrence is on
// time when it was completed on its scheduled day. Rates are percentages.
func BuildCareStats(start, end Date, occurrences []*TaskOccurrence) *CareStats {
	stats := &CareStats{
		StartDate: start,
		EndDate:   end,
		Stats:     []CareStat{},
	}

	type acc struct {
		stat     CareStat
		delaySum int
	}
	byPair := make(map[string]*acc)

	for _, o := range occurrences {
		if o.ScheduledDate.Before(start) || o.ScheduledDate.After(end) {
			continue
		}

		key := o.PlantID + "|" + string(o.CareType)
		a, ok := byPair[key]
		if !ok {
			a = &acc{stat: CareStat{PlantID: o.PlantID, CareType: o.CareType}}
			byPair[key] = a
		}

		a.stat.Scheduled++
		stats.TotalScheduled++
		if o.IsCompleted && o.CompletedDate != nil {
			a.stat.Completed++
			stats.TotalCompleted++
			delay := o.ScheduledDate.DaysUntil(*o.CompletedDate)
			a.delaySum += delay
			if delay == 0 {
				a.stat.OnTime++
			}
		}
	}

	for _, a := range byPair {
		s := a.stat
		if s.Scheduled > 0 {
			s.CompletionRate = float64(s.Completed) / float64(s.Scheduled) * 100
		}
		if s.Completed > 0 {
			s.AverageDelayDays = float64(a.delaySum) / float64(s.Completed)
		}
		stats.Stats = append(stats.Stats, s)
	}

	sort.Slice(stats.Stats, func(i, j int) bool {
		if stats.Stats[i].PlantID != stats.Stats[j].PlantID {
			return stats.Stats[i].PlantID < stats.Stats[j].PlantID
		}
		return stats.Stats[i].CareType < stats.Stats[j].CareType
	})

	if stats.TotalScheduled > 0 {
		stats.OverallRate = float64(stats.TotalCompleted) / float64(stats.TotalScheduled) * 100
	}
	return stats
}
