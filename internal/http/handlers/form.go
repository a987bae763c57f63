package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/diagnosis/reservations/internal/domain"
	"github.com/diagnosis/reservations/internal/reservation"
	"github.com/diagnosis/reservations/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var formTemplate = template.Must(template.ParseFS(templateFS, "templates/reservation_form.html"))

// FormHandler serves the server-rendered reservation form and accepts its
// urlencoded posts.
type FormHandler struct {
	svc   Submitter
	flash *Flash
}

func NewFormHandler(svc Submitter, flash *Flash) *FormHandler {
	return &FormHandler{svc: svc, flash: flash}
}

type formView struct {
	Constraints reservation.Constraints
	Values      domain.ReservationForm
	Status      domain.SubmissionStatus
	ErrorField  string
	Sending     string
}

func (v formView) Checked(value string) bool {
	return value != "" && value != "false" && value != "off"
}

func (v formView) SeatingChecked(s domain.Seating) bool {
	current, ok := domain.ParseSeating(v.Values.Seating)
	return ok && current == s
}

func (v formView) OccasionSelected(o domain.Occasion) bool {
	current, ok := domain.ParseOccasion(v.Values.Occasion)
	return ok && current == o
}

func (v formView) Invalid(field string) bool {
	return v.ErrorField == field
}

func (h *FormHandler) show(w http.ResponseWriter, r *http.Request) {
	view := formView{Constraints: h.svc.Constraints(), Sending: reservation.MsgSending}
	if status, ok := h.flash.Pop(w, r); ok {
		view.Status = status
	}
	h.render(w, r, http.StatusOK, view)
}

func (h *FormHandler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, formView{
			Constraints: h.svc.Constraints(),
			Sending:     reservation.MsgSending,
			Status:      domain.SubmissionStatus{State: domain.StateError, Message: "Could not read the form. Please try again."},
		})
		return
	}

	form := domain.ReservationForm{
		Name:            r.PostForm.Get("user_name"),
		Email:           r.PostForm.Get("user_email"),
		Phone:           r.PostForm.Get("phone"),
		Date:            r.PostForm.Get("reservation_date"),
		Time:            r.PostForm.Get("reservation_time"),
		PartySize:       r.PostForm.Get("party_size"),
		Seating:         r.PostForm.Get("seating"),
		Occasion:        r.PostForm.Get("occasion"),
		SpecialRequests: r.PostForm.Get("special_requests"),
		Terms:           r.PostForm.Get("gdpr"),
		Newsletter:      r.PostForm.Get("newsletter"),
		Website:         r.PostForm.Get("website"),
	}

	status, err := h.svc.Submit(r.Context(), form)
	if err == nil {
		if ferr := h.flash.Set(w, r, status); ferr != nil {
			logger.WarnContext(r.Context(), "Failed to set flash cookie", "error", ferr)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	view := formView{
		Constraints: h.svc.Constraints(),
		Values:      form,
		Status:      status,
		Sending:     reservation.MsgSending,
	}
	code, out := submissionResponse(status, err)
	if code == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Unexpected submission error", "error", err)
		view.Status = domain.SubmissionStatus{State: domain.StateError, Message: reservation.MsgSendFailed}
	}
	view.ErrorField = out.Field
	// sticky values, minus the honeypot
	view.Values.Website = ""
	h.render(w, r, code, view)
}

func (h *FormHandler) render(w http.ResponseWriter, r *http.Request, code int, view formView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := formTemplate.Execute(w, view); err != nil {
		logger.ErrorContext(r.Context(), "Failed to render reservation form", "error", err)
	}
}
