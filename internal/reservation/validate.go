package reservation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/reservations/internal/domain"
	"github.com/diagnosis/reservations/internal/utils"
)

// slot is a schedule that passed the date, future and service window checks.
type slot struct {
	date string
	hhmm string
	at   time.Time
	// offset from midnight, seconds included
	timeOfDay time.Duration
}

// checkSchedule applies the ordered date/time checks. The first failure wins.
func (c *Controller) checkSchedule(rawDate, rawTime string) (slot, *ValidationError) {
	date := strings.TrimSpace(rawDate)
	clock := strings.TrimSpace(rawTime)

	if date == "" || clock == "" {
		field := "reservation_date"
		if date != "" {
			field = "reservation_time"
		}
		return slot{}, &ValidationError{Field: field, Code: CodeMissingDateTime, Message: MsgMissingDateTime}
	}

	tod, ok := parseClock(clock)
	if !ok {
		return slot{}, &ValidationError{Field: "reservation_time", Code: CodeInvalidDateTime, Message: MsgInvalidDateTime}
	}
	day, err := time.ParseInLocation(domain.DateLayout, date, c.cfg.Location)
	if err != nil {
		return slot{}, &ValidationError{Field: "reservation_date", Code: CodeInvalidDateTime, Message: MsgInvalidDateTime}
	}

	h, m, sec := int(tod/time.Hour), int(tod/time.Minute)%60, int(tod/time.Second)%60
	at := time.Date(day.Year(), day.Month(), day.Day(), h, m, sec, 0, c.cfg.Location)
	if !at.After(c.now()) {
		return slot{}, &ValidationError{Field: "reservation_time", Code: CodePastDateTime, Message: MsgPastDateTime}
	}

	hhmm := fmt.Sprintf("%02d:%02d", h, m)
	if !c.cfg.Window.Contains(hhmm) {
		return slot{}, &ValidationError{
			Field:   "reservation_time",
			Code:    CodeOutsideServiceHours,
			Message: fmt.Sprintf("Reservations are accepted from %s.", c.cfg.Window),
		}
	}

	return slot{date: date, hhmm: hhmm, at: at, timeOfDay: tod}, nil
}

// parseClock accepts HH:MM or HH:MM:SS and returns the offset from midnight.
func parseClock(s string) (time.Duration, bool) {
	for _, layout := range []string{domain.TimeLayout, "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

// buildRequest re-checks the constraints the HTML form declares and returns
// the typed reservation.
func (c *Controller) buildRequest(form domain.ReservationForm, s slot) (domain.ReservationRequest, *ValidationError) {
	open, _ := parseClock(c.cfg.Window.Open)
	if (s.timeOfDay-open)%c.cfg.SlotStep != 0 {
		return domain.ReservationRequest{}, &ValidationError{
			Field:   "reservation_time",
			Code:    CodeInvalidTimeStep,
			Message: fmt.Sprintf("Please choose a time in %d-minute steps.", int(c.cfg.SlotStep/time.Minute)),
		}
	}

	name := utils.SanitizeText(form.Name)
	if name == "" {
		return domain.ReservationRequest{}, &ValidationError{Field: "user_name", Code: CodeMissingName, Message: "Please enter your name."}
	}

	if !utils.IsValidEmail(form.Email) {
		return domain.ReservationRequest{}, &ValidationError{Field: "user_email", Code: CodeInvalidEmail, Message: "Please enter a valid email address."}
	}

	phone := utils.NormalizeString(form.Phone)
	if phone != "" && !utils.IsValidPhone(phone) {
		return domain.ReservationRequest{}, &ValidationError{Field: "phone", Code: CodeInvalidPhone, Message: "Please enter a valid phone number."}
	}

	size, err := strconv.Atoi(strings.TrimSpace(form.PartySize))
	if err != nil || size < domain.MinPartySize || size > domain.MaxPartySize {
		return domain.ReservationRequest{}, &ValidationError{
			Field:   "party_size",
			Code:    CodeInvalidPartySize,
			Message: fmt.Sprintf("Party size must be between %d and %d.", domain.MinPartySize, domain.MaxPartySize),
		}
	}

	seating, ok := domain.ParseSeating(strings.TrimSpace(form.Seating))
	if !ok {
		return domain.ReservationRequest{}, &ValidationError{Field: "seating", Code: CodeInvalidSeating, Message: "Please choose a seating preference."}
	}

	occasion, ok := domain.ParseOccasion(strings.TrimSpace(form.Occasion))
	if !ok {
		return domain.ReservationRequest{}, &ValidationError{Field: "occasion", Code: CodeInvalidOccasion, Message: "Please choose an occasion."}
	}

	if !utils.IsChecked(form.Terms) {
		return domain.ReservationRequest{}, &ValidationError{Field: "gdpr", Code: CodeTermsRequired, Message: "Please accept the privacy policy to continue."}
	}

	return domain.ReservationRequest{
		Name:            name,
		Email:           utils.NormalizeEmail(form.Email),
		Phone:           phone,
		Date:            s.date,
		Time:            s.hhmm,
		At:              s.at,
		PartySize:       size,
		Seating:         seating,
		Occasion:        occasion,
		SpecialRequests: utils.SanitizeText(form.SpecialRequests),
		TermsAccepted:   true,
		Newsletter:      utils.IsChecked(form.Newsletter),
	}, nil
}
