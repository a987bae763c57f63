package reservation

import "fmt"

// Validation codes
const (
	CodeMissingDateTime     = "missing_datetime"
	CodeInvalidDateTime     = "invalid_datetime"
	CodePastDateTime        = "past_datetime"
	CodeOutsideServiceHours = "outside_service_hours"
	CodeInvalidTimeStep     = "invalid_time_step"
	CodeMissingName         = "missing_name"
	CodeInvalidEmail        = "invalid_email"
	CodeInvalidPhone        = "invalid_phone"
	CodeInvalidPartySize    = "invalid_party_size"
	CodeInvalidSeating      = "invalid_seating"
	CodeInvalidOccasion     = "invalid_occasion"
	CodeTermsRequired       = "terms_required"
)

// User-facing status messages.
const (
	MsgMissingDateTime = "Please choose a date and time."
	MsgInvalidDateTime = "Please enter a valid date and time."
	MsgPastDateTime    = "Please select a time in the future."
	MsgSending         = "Sending reservation..."
	MsgSent            = "Reservation request sent! We'll email you shortly."
	MsgSentQuiet       = "Reservation request sent!"
	MsgSendFailed      = "Failed to send. Please try again."
)

// ValidationError is a local, user-correctable problem with the submitted form.
// No email is sent when one is returned.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
}

// Recipient roles
const (
	RoleAdmin = "admin"
	RoleGuest = "guest"
)

// TransportError wraps a relay failure. The cause is for logs only.
type TransportError struct {
	TemplateID string
	Recipient  string
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send %s email (template %s): %v", e.Recipient, e.TemplateID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
