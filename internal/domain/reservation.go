package domain

import (
	"fmt"
	"strconv"
	"time"
)

type Seating string

const (
	SeatingIndoor       Seating = "Indoor"
	SeatingOutdoor      Seating = "Outdoor"
	SeatingNoPreference Seating = "No preference"
)

// Seatings lists the accepted seating preferences in display order.
var Seatings = []Seating{SeatingIndoor, SeatingOutdoor, SeatingNoPreference}

// ParseSeating maps a posted value onto a Seating. An empty value selects Indoor.
func ParseSeating(s string) (Seating, bool) {
	switch Seating(s) {
	case "":
		return SeatingIndoor, true
	case SeatingIndoor, SeatingOutdoor, SeatingNoPreference:
		return Seating(s), true
	default:
		return "", false
	}
}

type Occasion string

const (
	OccasionNone        Occasion = "None"
	OccasionBirthday    Occasion = "Birthday"
	OccasionAnniversary Occasion = "Anniversary"
	OccasionBusiness    Occasion = "Business"
	OccasionOther       Occasion = "Other"
)

var Occasions = []Occasion{OccasionNone, OccasionBirthday, OccasionAnniversary, OccasionBusiness, OccasionOther}

func ParseOccasion(s string) (Occasion, bool) {
	switch Occasion(s) {
	case "":
		return OccasionNone, true
	case OccasionNone, OccasionBirthday, OccasionAnniversary, OccasionBusiness, OccasionOther:
		return Occasion(s), true
	default:
		return "", false
	}
}

// Business rules
const (
	MinPartySize     = 1
	MaxPartySize     = 20
	DefaultOpenTime  = "11:00"
	DefaultCloseTime = "22:00"
	DefaultSlotStep  = 5 * time.Minute

	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ServiceWindow is the inclusive range of bookable times of day, as zero-padded
// "HH:MM" strings. Comparison is lexicographic, which matches chronological
// order for that format.
type ServiceWindow struct {
	Open  string `yaml:"open" json:"open"`
	Close string `yaml:"close" json:"close"`
}

func DefaultServiceWindow() ServiceWindow {
	return ServiceWindow{Open: DefaultOpenTime, Close: DefaultCloseTime}
}

func (w ServiceWindow) Contains(hhmm string) bool {
	return hhmm >= w.Open && hhmm <= w.Close
}

func (w ServiceWindow) Validate() error {
	if _, err := time.Parse(TimeLayout, w.Open); err != nil || len(w.Open) != 5 {
		return fmt.Errorf("service window open time %q must be HH:MM", w.Open)
	}
	if _, err := time.Parse(TimeLayout, w.Close); err != nil || len(w.Close) != 5 {
		return fmt.Errorf("service window close time %q must be HH:MM", w.Close)
	}
	if w.Open >= w.Close {
		return fmt.Errorf("service window open time %s must be before close time %s", w.Open, w.Close)
	}
	return nil
}

func (w ServiceWindow) String() string {
	return w.Open + " to " + w.Close
}

// ReservationForm is the raw submission exactly as a browser or API client posts it.
type ReservationForm struct {
	Name            string `json:"user_name"`
	Email           string `json:"user_email"`
	Phone           string `json:"phone"`
	Date            string `json:"reservation_date"`
	Time            string `json:"reservation_time"`
	PartySize       string `json:"party_size"`
	Seating         string `json:"seating"`
	Occasion        string `json:"occasion"`
	SpecialRequests string `json:"special_requests"`
	Terms           string `json:"gdpr"`
	Newsletter      string `json:"newsletter"`
	Website         string `json:"website"`
}

// ReservationRequest is a validated reservation ready to be dispatched.
type ReservationRequest struct {
	SubmissionID    string
	Name            string
	Email           string
	Phone           string
	Date            string
	Time            string
	At              time.Time
	PartySize       int
	Seating         Seating
	Occasion        Occasion
	SpecialRequests string
	TermsAccepted   bool
	Newsletter      bool
}

func (r ReservationRequest) DisplayDateTime() string {
	return r.Date + " " + r.Time
}

// Template parameter names shared by every email template.
const (
	ParamName            = "user_name"
	ParamEmail           = "user_email"
	ParamPhone           = "phone"
	ParamDate            = "reservation_date"
	ParamTime            = "reservation_time"
	ParamPartySize       = "party_size"
	ParamSeating         = "seating"
	ParamOccasion        = "occasion"
	ParamSpecialRequests = "special_requests"
	ParamTerms           = "gdpr"
	ParamNewsletter      = "newsletter"
	ParamDisplay         = "reservation_datetime_display"
	ParamReference       = "reference"

	ParamAliasDate      = "d"
	ParamAliasTime      = "t"
	ParamAliasName      = "n"
	ParamAliasPartySize = "sz"
)

// TemplateParams returns the named values every template may reference,
// including the short aliases some templates were authored against.
func (r ReservationRequest) TemplateParams() map[string]string {
	size := strconv.Itoa(r.PartySize)
	display := r.DisplayDateTime()
	return map[string]string{
		ParamName:            r.Name,
		ParamEmail:           r.Email,
		ParamPhone:           r.Phone,
		ParamDate:            r.Date,
		ParamTime:            r.Time,
		ParamPartySize:       size,
		ParamSeating:         string(r.Seating),
		ParamOccasion:        string(r.Occasion),
		ParamSpecialRequests: r.SpecialRequests,
		ParamTerms:           yesNo(r.TermsAccepted),
		ParamNewsletter:      yesNo(r.Newsletter),
		ParamDisplay:         display,
		ParamReference:       r.SubmissionID,
		ParamAliasDate:       r.Date,
		ParamAliasTime:       r.Time,
		ParamAliasName:       r.Name,
		ParamAliasPartySize:  size,
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

type SubmissionState string

const (
	StateIdle    SubmissionState = "idle"
	StateLoading SubmissionState = "loading"
	StateSuccess SubmissionState = "success"
	StateError   SubmissionState = "error"
)

type SubmissionStatus struct {
	State   SubmissionState `json:"state"`
	Message string          `json:"message"`
}

// ClearsForm reports whether the front-end should reset every field.
func (s SubmissionStatus) ClearsForm() bool {
	return s.State == StateSuccess
}
