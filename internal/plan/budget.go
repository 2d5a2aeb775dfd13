// Package plan derives read-only summaries from an itinerary.
package plan

import "tripcal/internal/model"

// CountrySpend is the actual spend of one segment, labelled by country.
type CountrySpend struct {
	Country string  `json:"country"`
	Actual  float64 `json:"actual"`
}

// SegmentCosts compares a segment's known costs against its budget.
type SegmentCosts struct {
	SegmentID  string  `json:"segmentId"`
	Country    string  `json:"country"`
	Budget     float64 `json:"budget"`
	Known      float64 `json:"known"`
	OverBudget bool    `json:"overBudget"`
}

// BudgetSummary is the trip-wide budget overview.
type BudgetSummary struct {
	Planned    float64        `json:"planned"`
	Actual     float64        `json:"actual"`
	Remaining  float64        `json:"remaining"`
	OverBudget bool           `json:"overBudget"`
	ByCountry  []CountrySpend `json:"byCountry"`
	Segments   []SegmentCosts `json:"segments"`
}

// Budget totals planned budgets and actual spend. Rows follow segment order,
// one per segment; repeated countries are not merged.
func Budget(it *model.Itinerary) BudgetSummary {
	out := BudgetSummary{
		ByCountry: []CountrySpend{},
		Segments:  []SegmentCosts{},
	}
	if it == nil {
		return out
	}

	for _, seg := range it.Segments {
		actual := seg.ActualSpend()
		known := seg.KnownCosts()

		out.Planned += seg.Budget
		out.Actual += actual
		out.ByCountry = append(out.ByCountry, CountrySpend{Country: seg.Country, Actual: actual})
		out.Segments = append(out.Segments, SegmentCosts{
			SegmentID:  seg.ID,
			Country:    seg.Country,
			Budget:     seg.Budget,
			Known:      known,
			OverBudget: known > seg.Budget,
		})
	}

	out.Remaining = max(0, out.Planned-out.Actual)
	out.OverBudget = out.Actual > out.Planned
	return out
}
