package booking

import (
	"time"

	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

// Summary backs the staff dashboard.
type Summary struct {
	Total    int
	Upcoming int
	Today    int
	Days     []store.DayCount
}

func Summarize(counts []store.DayCount, today time.Time) Summary {
	today = models.Day(today)
	sum := Summary{Days: counts}
	for _, c := range counts {
		sum.Total += c.Count
		day := models.Day(c.Date)
		if !day.Before(today) {
			sum.Upcoming += c.Count
		}
		if day.Equal(today) {
			sum.Today += c.Count
		}
	}
	return sum
}

// Districts is the list offered by the booking form.
var Districts = []string{
	"Abdiaziz",
	"Bondhere",
	"Dayniile",
	"Dharkenley",
	"Garasbaley",
	"Hamar Jajab",
	"Hamar Weyne",
	"Hawle Wadaag",
	"Hodan",
	"Kaaran",
	"Kahda",
	"Shangani",
	"Shibis",
	"Wadajir",
	"Waberi",
	"Wardhiigley",
	"Yaqshid",
	"Other",
}
