package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"

	"github.com/diagnosis/reservations/internal/domain"
	"github.com/diagnosis/reservations/internal/reservation"
	"github.com/diagnosis/reservations/internal/utils"
)

// prompter asks for the form fields one by one.
type prompter interface {
	Input(message, def string, validate func(string) error) (string, error)
	Select(message string, options []string, def string) (string, error)
	Confirm(message string, def bool) (bool, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Input(message, def string, validate func(string) error) (string, error) {
	var out string
	var opts []survey.AskOpt
	if validate != nil {
		opts = append(opts, survey.WithValidator(func(ans interface{}) error {
			s, _ := ans.(string)
			return validate(s)
		}))
	}
	err := survey.AskOne(&survey.Input{Message: message, Default: def}, &out, opts...)
	return out, translateSurveyErr(err)
}

func (surveyPrompter) Select(message string, options []string, def string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Select{Message: message, Options: options, Default: def}, &out)
	return out, translateSurveyErr(err)
}

func (surveyPrompter) Confirm(message string, def bool) (bool, error) {
	var out bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &out)
	return out, translateSurveyErr(err)
}

var errAborted = errors.New("submission cancelled")

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errAborted
	}
	return err
}

func NewSubmitCmd() *cobra.Command {
	var (
		form        domain.ReservationForm
		terms       bool
		newsletter  bool
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one reservation through the configured email relay",
		Example: `  reservations submit --name "Ada" --email ada@example.com \
    --date 2026-10-20 --time 19:30 --party-size 2 --terms
  reservations submit --interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ctrl, pub, err := newController(cfg, reservation.WithObserver(func(s domain.SubmissionStatus) {
				if s.State == domain.StateLoading {
					fmt.Fprintln(out, s.Message)
				}
			}))
			if err != nil {
				return err
			}
			defer pub.Close()

			if interactive {
				form, err = promptForm(surveyPrompter{}, ctrl.Constraints())
				if err != nil {
					return err
				}
			} else {
				form.Terms = strconv.FormatBool(terms)
				form.Newsletter = strconv.FormatBool(newsletter)
			}

			return submitAndReport(cmd.Context(), ctrl, form, out)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&interactive, "interactive", "i", false, "prompt for each field")
	f.StringVar(&form.Name, "name", "", "guest name")
	f.StringVar(&form.Email, "email", "", "guest email")
	f.StringVar(&form.Phone, "phone", "", "guest phone (optional)")
	f.StringVar(&form.Date, "date", "", "reservation date (YYYY-MM-DD)")
	f.StringVar(&form.Time, "time", "", "reservation time (HH:MM)")
	f.StringVar(&form.PartySize, "party-size", "2", "number of guests")
	f.StringVar(&form.Seating, "seating", string(domain.SeatingIndoor), "Indoor, Outdoor or \"No preference\"")
	f.StringVar(&form.Occasion, "occasion", string(domain.OccasionNone), "None, Birthday, Anniversary, Business or Other")
	f.StringVar(&form.SpecialRequests, "requests", "", "special requests")
	f.BoolVar(&terms, "terms", false, "accept the privacy policy")
	f.BoolVar(&newsletter, "newsletter", false, "subscribe to the newsletter")
	return cmd
}

type formSubmitter interface {
	Submit(ctx context.Context, form domain.ReservationForm) (domain.SubmissionStatus, error)
}

// submitAndReport prints the final status. Transport details stay in the logs.
func submitAndReport(ctx context.Context, svc formSubmitter, form domain.ReservationForm, out io.Writer) error {
	status, err := svc.Submit(ctx, form)
	fmt.Fprintln(out, status.Message)
	if err != nil {
		var verr *reservation.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%s: %s", verr.Field, verr.Code)
		}
		return errors.New("delivery failed")
	}
	return nil
}

// promptForm walks the guest through every field. Values are checked again by
// the controller; the validators here only catch typos early.
func promptForm(p prompter, c reservation.Constraints) (domain.ReservationForm, error) {
	var form domain.ReservationForm
	var err error

	required := func(s string) error {
		if utils.NormalizeString(s) == "" {
			return errors.New("required")
		}
		return nil
	}

	if form.Name, err = p.Input("Name", "", required); err != nil {
		return form, err
	}
	if form.Email, err = p.Input("Email", "", func(s string) error {
		if !utils.IsValidEmail(s) {
			return errors.New("not a valid email address")
		}
		return nil
	}); err != nil {
		return form, err
	}
	if form.Phone, err = p.Input("Phone (optional)", "", nil); err != nil {
		return form, err
	}
	if form.Date, err = p.Input("Date (YYYY-MM-DD)", c.MinDate, required); err != nil {
		return form, err
	}
	if form.Time, err = p.Input(fmt.Sprintf("Time (HH:MM, %s to %s)", c.OpenTime, c.CloseTime), "", required); err != nil {
		return form, err
	}
	if form.PartySize, err = p.Input(fmt.Sprintf("Party size (%d-%d)", c.MinPartySize, c.MaxPartySize), "2", func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil || n < c.MinPartySize || n > c.MaxPartySize {
			return fmt.Errorf("enter a number from %d to %d", c.MinPartySize, c.MaxPartySize)
		}
		return nil
	}); err != nil {
		return form, err
	}

	seatings := make([]string, len(c.Seatings))
	for i, s := range c.Seatings {
		seatings[i] = string(s)
	}
	if form.Seating, err = p.Select("Seating", seatings, seatings[0]); err != nil {
		return form, err
	}

	occasions := make([]string, len(c.Occasions))
	for i, o := range c.Occasions {
		occasions[i] = string(o)
	}
	if form.Occasion, err = p.Select("Occasion", occasions, occasions[0]); err != nil {
		return form, err
	}

	if form.SpecialRequests, err = p.Input("Special requests", "", nil); err != nil {
		return form, err
	}

	terms, err := p.Confirm("Accept the privacy policy?", false)
	if err != nil {
		return form, err
	}
	form.Terms = strconv.FormatBool(terms)

	newsletter, err := p.Confirm("Subscribe to the newsletter?", false)
	if err != nil {
		return form, err
	}
	form.Newsletter = strconv.FormatBool(newsletter)
	return form, nil
}
