package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diagnosis/reservations/internal/domain"
	"github.com/diagnosis/reservations/internal/platform/mailer"
	"github.com/diagnosis/reservations/pkg/events"
	"github.com/diagnosis/reservations/pkg/logger"
)

type Config struct {
	AdminTemplateID string
	// UserTemplateID enables the guest auto-reply when set.
	UserTemplateID string
	Admin          mailer.Recipient
	Window         domain.ServiceWindow
	SlotStep       time.Duration
	Location       *time.Location
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithObserver receives every status transition, including loading.
func WithObserver(fn func(domain.SubmissionStatus)) Option {
	return func(c *Controller) { c.observe = fn }
}

func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// Controller validates reservation forms and dispatches the admin and guest emails.
type Controller struct {
	sender    mailer.Sender
	publisher events.Publisher
	cfg       Config
	now       func() time.Time
	observe   func(domain.SubmissionStatus)
	newID     func() string
}

func NewController(sender mailer.Sender, publisher events.Publisher, cfg Config, opts ...Option) (*Controller, error) {
	if sender == nil {
		return nil, errors.New("reservation: email sender is required")
	}
	if strings.TrimSpace(cfg.AdminTemplateID) == "" {
		return nil, errors.New("reservation: admin template id is required")
	}
	if cfg.Window == (domain.ServiceWindow{}) {
		cfg.Window = domain.DefaultServiceWindow()
	}
	if err := cfg.Window.Validate(); err != nil {
		return nil, fmt.Errorf("reservation: %w", err)
	}
	if cfg.SlotStep == 0 {
		cfg.SlotStep = domain.DefaultSlotStep
	}
	if cfg.SlotStep < time.Minute || cfg.SlotStep%time.Minute != 0 {
		return nil, fmt.Errorf("reservation: slot step %s must be a whole number of minutes", cfg.SlotStep)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	c := &Controller{
		sender:    sender,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		observe:   func(domain.SubmissionStatus) {},
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit runs one submission attempt. The returned status is always set; the
// error is a *ValidationError or *TransportError when the status is an error.
func (c *Controller) Submit(ctx context.Context, form domain.ReservationForm) (domain.SubmissionStatus, error) {
	submissionID := c.newID()
	ctx = context.WithValue(ctx, logger.SubmissionIDKey, submissionID)

	sched, err := c.checkSchedule(form.Date, form.Time)
	if err != nil {
		return c.reject(ctx, err)
	}

	if strings.TrimSpace(form.Website) != "" {
		logger.WarnContext(ctx, "Honeypot field filled, dropping reservation")
		status := domain.SubmissionStatus{State: domain.StateSuccess, Message: MsgSentQuiet}
		c.observe(status)
		return status, nil
	}

	req, err := c.buildRequest(form, sched)
	if err != nil {
		return c.reject(ctx, err)
	}
	req.SubmissionID = submissionID

	return c.dispatch(ctx, req)
}

func (c *Controller) dispatch(ctx context.Context, req domain.ReservationRequest) (domain.SubmissionStatus, error) {
	c.observe(domain.SubmissionStatus{State: domain.StateLoading, Message: MsgSending})
	logger.InfoContext(ctx, "Sending reservation",
		"date", req.Date,
		"time", req.Time,
		"party_size", req.PartySize,
		"guest_reply", c.cfg.UserTemplateID != "",
	)

	params := req.TemplateParams()
	guest := mailer.Recipient{Email: req.Email, Name: req.Name}

	if err := c.sender.Send(ctx, mailer.Message{
		TemplateID: c.cfg.AdminTemplateID,
		To:         c.cfg.Admin,
		ReplyTo:    guest,
		Params:     params,
	}); err != nil {
		return c.fail(ctx, &TransportError{TemplateID: c.cfg.AdminTemplateID, Recipient: RoleAdmin, Err: err})
	}

	if c.cfg.UserTemplateID != "" {
		if err := c.sender.Send(ctx, mailer.Message{
			TemplateID: c.cfg.UserTemplateID,
			To:         guest,
			ReplyTo:    c.cfg.Admin,
			Params:     params,
		}); err != nil {
			return c.fail(ctx, &TransportError{TemplateID: c.cfg.UserTemplateID, Recipient: RoleGuest, Err: err})
		}
	}

	c.publish(ctx, req)

	logger.InfoContext(ctx, "Reservation sent")
	status := domain.SubmissionStatus{State: domain.StateSuccess, Message: MsgSent}
	c.observe(status)
	return status, nil
}

func (c *Controller) publish(ctx context.Context, req domain.ReservationRequest) {
	evt := events.ReservationRequestedEvent{
		SubmissionID:  req.SubmissionID,
		GuestName:     req.Name,
		GuestEmail:    req.Email,
		GuestPhone:    req.Phone,
		ScheduledAt:   req.At,
		Display:       req.DisplayDateTime(),
		PartySize:     req.PartySize,
		Seating:       string(req.Seating),
		Occasion:      string(req.Occasion),
		Newsletter:    req.Newsletter,
		GuestNotified: c.cfg.UserTemplateID != "",
		RequestedAt:   c.now(),
	}
	if err := c.publisher.Publish(ctx, events.ReservationRequested, evt); err != nil {
		logger.WarnContext(ctx, "Failed to publish reservation event", "error", err)
	}
}

func (c *Controller) reject(ctx context.Context, err *ValidationError) (domain.SubmissionStatus, error) {
	logger.InfoContext(ctx, "Reservation rejected", "code", err.Code, "field", err.Field)
	status := domain.SubmissionStatus{State: domain.StateError, Message: err.Message}
	c.observe(status)
	return status, err
}

func (c *Controller) fail(ctx context.Context, err *TransportError) (domain.SubmissionStatus, error) {
	logger.ErrorContext(ctx, "Reservation email failed",
		"recipient", err.Recipient,
		"template_id", err.TemplateID,
		"error", err.Err,
	)
	status := domain.SubmissionStatus{State: domain.StateError, Message: MsgSendFailed}
	c.observe(status)
	return status, err
}

// Constraints describes the bounds the form should advertise to the guest.
type Constraints struct {
	MinDate      string
	OpenTime     string
	CloseTime    string
	StepSeconds  int
	MinPartySize int
	MaxPartySize int
	Seatings     []domain.Seating
	Occasions    []domain.Occasion
}

func (c *Controller) Constraints() Constraints {
	return Constraints{
		MinDate:      c.now().In(c.cfg.Location).Format(domain.DateLayout),
		OpenTime:     c.cfg.Window.Open,
		CloseTime:    c.cfg.Window.Close,
		StepSeconds:  int(c.cfg.SlotStep / time.Second),
		MinPartySize: domain.MinPartySize,
		MaxPartySize: domain.MaxPartySize,
		Seatings:     domain.Seatings,
		Occasions:    domain.Occasions,
	}
}
