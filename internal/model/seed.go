package model

// Seed returns the demo itinerary used on first run. newID supplies entity
// ids so callers decide between random and deterministic identifiers.
func Seed(newID func() string) *Itinerary {
	leg := func(typ, from, to, date, depart, arrive string, cost float64) *Transport {
		return &Transport{ID: newID(), Type: typ, From: from, To: to, Date: date, DepartTime: depart, ArriveDate: date, ArriveTime: arrive, Cost: cost}
	}

	it := &Itinerary{
		Title:                  "Fall 2025 Europe",
		DailyStudyHoursDefault: 1.0,
		Checklist: []ChecklistItem{
			{ID: newID(), Text: "Passport + 2 photocopies"},
			{ID: newID(), Text: "Laptop + charger"},
			{ID: newID(), Text: "EU power adapter"},
			{ID: newID(), Text: "eSIM details ready"},
		},
		Segments: []Segment{
			{
				ID: newID(), Country: "Netherlands", Cities: []string{"Amsterdam"},
				StartDate: "2025-09-11", EndDate: "2025-09-13", Status: StatusConfirmed, Budget: 450, DailyStudyHours: 1.0,
				Stays: []Stay{{
					ID: newID(), Name: "Social Hostel (Dorm)", Type: StayHostel, Address: "Centrum, Amsterdam",
					CheckIn: "2025-09-11", CheckOut: "2025-09-13", CheckInTime: "15:00", CheckOutTime: "10:00", CostPerNight: 55,
				}},
				Places:       []Place{{ID: newID(), Name: "Rijksmuseum", City: "Amsterdam", Category: "History", Priority: 5}},
				Spend:        []SpendEntry{{ID: newID(), Date: "2025-09-11", Category: "Transport", Note: "Airport train + tram day pass", Amount: 18}},
				TransportIn:  leg(TransportFlight, "TPA", "AMS", "2025-09-11", "08:00", "22:00", 500),
				TransportOut: leg(TransportTrain, "Amsterdam", "Munich", "2025-09-19", "08:00", "17:00", 120),
			},
			{
				ID: newID(), Country: "Germany", Cities: []string{"Munich"},
				StartDate: "2025-09-20", EndDate: "2025-09-22", Status: StatusTentative, Budget: 500, DailyStudyHours: 0.5,
				Places:       []Place{{ID: newID(), Name: "Residenz Museum", City: "Munich", Category: "History", Priority: 4}},
				TransportIn:  leg(TransportTrain, "Amsterdam", "Munich", "2025-09-20", "08:00", "16:00", 120),
				TransportOut: leg(TransportTrain, "Munich", "Copenhagen", "2025-09-22", "09:00", "18:00", 140),
			},
			{
				ID: newID(), Country: "Denmark", Cities: []string{"Copenhagen"},
				StartDate: "2025-09-22", EndDate: "2025-09-25", Status: StatusConfirmed, Budget: 600, DailyStudyHours: 1.0,
				Places:       []Place{{ID: newID(), Name: "National Museum of Denmark", City: "Copenhagen", Category: "History", Priority: 5}},
				TransportIn:  leg(TransportTrain, "Munich", "Copenhagen", "2025-09-22", "09:00", "18:00", 140),
				TransportOut: leg(TransportTrain, "Copenhagen", "Stockholm", "2025-09-25", "10:00", "15:00", 70),
			},
			{
				ID: newID(), Country: "Sweden", Cities: []string{"Stockholm", "Gothenburg"},
				StartDate: "2025-09-25", EndDate: "2025-10-03", Status: StatusConfirmed, Budget: 900, DailyStudyHours: 1.5,
				Places:       []Place{{ID: newID(), Name: "Vasa Museum", City: "Stockholm", Category: "History", Priority: 5}},
				TransportIn:  leg(TransportTrain, "Copenhagen", "Stockholm", "2025-09-25", "10:00", "15:00", 70),
				TransportOut: leg(TransportFlight, "Stockholm", "Oslo", "2025-10-03", "11:00", "12:10", 80),
			},
			{
				ID: newID(), Country: "Norway", Cities: []string{"Oslo", "Bergen", "Tromsø"},
				StartDate: "2025-10-03", EndDate: "2025-10-12", Status: StatusTentative, Budget: 1200, DailyStudyHours: 1.0,
				TransportIn:  leg(TransportFlight, "Stockholm", "Oslo", "2025-10-03", "11:00", "12:10", 80),
				TransportOut: leg(TransportFlight, "Oslo", "Reykjavík", "2025-10-12", "13:30", "15:30", 110),
			},
		},
	}
	it.Normalize()
	return it
}
