package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diagnosis/reservations/pkg/config"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Print the effective configuration and exit non-zero if it is unusable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAll()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	})
	return cmd
}

func printConfig(w io.Writer, cfg *config.Config) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"email provider", cfg.Email.Provider},
		{"admin template", cfg.Email.AdminTemplateID},
		{"user template", orNone(cfg.Email.UserTemplateID)},
		{"admin email", orNone(cfg.Email.AdminEmail)},
		{"emailjs service", orNone(cfg.Email.EmailJS.ServiceID)},
		{"emailjs public key", mask(cfg.Email.EmailJS.PublicKey)},
		{"emailjs private key", mask(cfg.Email.EmailJS.PrivateKey)},
		{"mailersend key", mask(cfg.Email.MailerSendKey)},
		{"sendgrid key", mask(cfg.Email.SendGridKey)},
		{"service window", cfg.Form.OpenTime + " to " + cfg.Form.CloseTime},
		{"slot step", cfg.Form.SlotStep.String()},
		{"timezone", cfg.Form.Timezone},
		{"allowed origins", strings.Join(cfg.Server.AllowedOrigins, ", ")},
		{"redis", orNone(cfg.Redis.URL)},
		{"nats", orNone(cfg.NATS.URL)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	tw.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// mask keeps the last four characters of a secret.
func mask(s string) string {
	switch {
	case s == "":
		return "(none)"
	case len(s) <= 4:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}
