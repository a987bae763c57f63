package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diagnosis/reservations/pkg/config"
	"github.com/diagnosis/reservations/pkg/events"
)

func NewEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Work with reservation events",
	}
	cmd.AddCommand(newEventsTailCmd())
	return cmd
}

func newEventsTailCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print reservation events from NATS as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnvFiles()
			cfg := config.Load()
			if cfg.NATS.URL == "" {
				return errors.New("NATS_URL is not set")
			}
			bus, err := events.NewNATSEventBus(cfg.NATS.URL)
			if err != nil {
				return err
			}
			defer bus.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if err := bus.Subscribe(subject, func(msg *events.Message) {
				printEvent(out, msg)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "listening on %s\n", subject)
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", events.ReservationAll, "NATS subject to subscribe to")
	return cmd
}

func printEvent(w io.Writer, msg *events.Message) {
	if msg.Subject != events.ReservationRequested {
		fmt.Fprintf(w, "%s %s\n", msg.Subject, msg.Data)
		return
	}
	var evt events.ReservationRequestedEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		fmt.Fprintf(w, "%s (undecodable) %s\n", msg.Subject, msg.Data)
		return
	}
	fmt.Fprintf(w, "%s %s party of %d, %s <%s> [%s]\n",
		evt.SubmissionID, evt.Display, evt.PartySize, evt.GuestName, evt.GuestEmail, evt.Seating)
}
