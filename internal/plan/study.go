package plan

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "tripcal/internal/log"
	"tripcal/internal/model"
)

// StudyDay is one calendar day of a segment with its study target.
type StudyDay struct {
	Date      string  `json:"date"`
	SegmentID string  `json:"segmentId"`
	Country   string  `json:"country"`
	Hours     float64 `json:"hours"`
}

// SegmentStudy is the study load of one segment.
type SegmentStudy struct {
	SegmentID   string  `json:"segmentId"`
	Country     string  `json:"country"`
	Days        int     `json:"days"`
	HoursPerDay float64 `json:"hoursPerDay"`
	TotalHours  float64 `json:"totalHours"`
}

// StudySummary is the study plan across the whole trip.
type StudySummary struct {
	TotalDays  int            `json:"totalDays"`
	TotalHours float64        `json:"totalHours"`
	Segments   []SegmentStudy `json:"segments"`
	Days       []StudyDay     `json:"days"`
}

// StudyPlan lists every day from each segment's start date to its end date,
// both inclusive. Hours per day come from the segment, falling back to the
// itinerary default when the segment has none. Segments with a missing or
// invalid range contribute no days.
func StudyPlan(it *model.Itinerary) StudySummary {
	out := StudySummary{Segments: []SegmentStudy{}, Days: []StudyDay{}}
	if it == nil {
		return out
	}

	for _, seg := range it.Segments {
		hours := seg.DailyStudyHours
		if hours == 0 {
			hours = it.DailyStudyHoursDefault
		}

		days := segmentDays(seg)
		row := SegmentStudy{
			SegmentID:   seg.ID,
			Country:     seg.Country,
			Days:        len(days),
			HoursPerDay: hours,
			TotalHours:  float64(len(days)) * hours,
		}
		out.Segments = append(out.Segments, row)
		out.TotalDays += row.Days
		out.TotalHours += row.TotalHours

		for _, d := range days {
			out.Days = append(out.Days, StudyDay{
				Date:      d.Format(model.DateLayout),
				SegmentID: seg.ID,
				Country:   seg.Country,
				Hours:     hours,
			})
		}
	}
	return out
}

func segmentDays(seg model.Segment) []time.Time {
	start, ok := model.ParseDate(seg.StartDate)
	if !ok {
		return nil
	}
	end, ok := model.ParseDate(seg.EndDate)
	if !ok || end.Before(start) {
		return nil
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start,
		Until:   end,
	})
	if err != nil {
		appLog.Error("study plan: failed to build daily rule", err, "segment", seg.ID)
		return nil
	}
	return r.All()
}
