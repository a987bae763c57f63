package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/reservations/internal/domain"
	"github.com/diagnosis/reservations/internal/http/response"
	"github.com/diagnosis/reservations/internal/reservation"
	"github.com/diagnosis/reservations/pkg/logger"
)

// Submitter is the reservation controller as the HTTP layer sees it.
type Submitter interface {
	Submit(ctx context.Context, form domain.ReservationForm) (domain.SubmissionStatus, error)
	Constraints() reservation.Constraints
}

type SubmissionResponse struct {
	State     domain.SubmissionState `json:"state"`
	Message   string                 `json:"message"`
	ClearForm bool                   `json:"clear_form"`
	Code      string                 `json:"code,omitempty"`
	Field     string                 `json:"field,omitempty"`
}

type APIHandler struct {
	svc Submitter
}

func NewAPIHandler(svc Submitter) *APIHandler {
	return &APIHandler{svc: svc}
}

func (h *APIHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/constraints", h.constraints)
	return r
}

// flexString accepts JSON strings, numbers and booleans so API clients can
// send party_size: 4 or gdpr: true.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case bytes.Equal(b, []byte("true")), bytes.Equal(b, []byte("false")):
		*f = flexString(b)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.New("expected string, number or boolean")
		}
		*f = flexString(n.String())
	}
	return nil
}

type apiReservation struct {
	Name            flexString `json:"user_name"`
	Email           flexString `json:"user_email"`
	Phone           flexString `json:"phone"`
	Date            flexString `json:"reservation_date"`
	Time            flexString `json:"reservation_time"`
	PartySize       flexString `json:"party_size"`
	Seating         flexString `json:"seating"`
	Occasion        flexString `json:"occasion"`
	SpecialRequests flexString `json:"special_requests"`
	Terms           flexString `json:"gdpr"`
	Newsletter      flexString `json:"newsletter"`
	Website         flexString `json:"website"`
}

func (a apiReservation) form() domain.ReservationForm {
	return domain.ReservationForm{
		Name:            string(a.Name),
		Email:           string(a.Email),
		Phone:           string(a.Phone),
		Date:            string(a.Date),
		Time:            string(a.Time),
		PartySize:       string(a.PartySize),
		Seating:         string(a.Seating),
		Occasion:        string(a.Occasion),
		SpecialRequests: string(a.SpecialRequests),
		Terms:           string(a.Terms),
		Newsletter:      string(a.Newsletter),
		Website:         string(a.Website),
	}
}

func (h *APIHandler) create(w http.ResponseWriter, r *http.Request) {
	var in apiReservation
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&in); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	status, err := h.svc.Submit(r.Context(), in.form())
	code, out := submissionResponse(status, err)
	if code == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Unexpected submission error", "error", err)
		response.InternalError(w, "Something went wrong")
		return
	}
	response.WriteJSON(w, code, out)
}

func submissionResponse(status domain.SubmissionStatus, err error) (int, SubmissionResponse) {
	out := SubmissionResponse{
		State:     status.State,
		Message:   status.Message,
		ClearForm: status.ClearsForm(),
	}

	var verr *reservation.ValidationError
	var terr *reservation.TransportError
	switch {
	case err == nil:
		return http.StatusOK, out
	case errors.As(err, &verr):
		out.Code = verr.Code
		out.Field = verr.Field
		return http.StatusUnprocessableEntity, out
	case errors.As(err, &terr):
		out.Code = response.CodeDeliveryFailed
		return http.StatusBadGateway, out
	default:
		return http.StatusInternalServerError, out
	}
}

type constraintsResponse struct {
	MinDate      string   `json:"min_date"`
	OpenTime     string   `json:"open_time"`
	CloseTime    string   `json:"close_time"`
	StepSeconds  int      `json:"step_seconds"`
	MinPartySize int      `json:"min_party_size"`
	MaxPartySize int      `json:"max_party_size"`
	Seating      []string `json:"seating"`
	Occasions    []string `json:"occasions"`
}

func (h *APIHandler) constraints(w http.ResponseWriter, r *http.Request) {
	c := h.svc.Constraints()
	out := constraintsResponse{
		MinDate:      c.MinDate,
		OpenTime:     c.OpenTime,
		CloseTime:    c.CloseTime,
		StepSeconds:  c.StepSeconds,
		MinPartySize: c.MinPartySize,
		MaxPartySize: c.MaxPartySize,
	}
	for _, s := range c.Seatings {
		out.Seating = append(out.Seating, string(s))
	}
	for _, o := range c.Occasions {
		out.Occasions = append(out.Occasions, string(o))
	}
	w.Header().Set("Cache-Control", "max-age=60")
	response.WriteJSON(w, http.StatusOK, out)
}
