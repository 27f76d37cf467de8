package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/nira-appointments/internal/booking"
	"github.com/example/nira-appointments/internal/config"
	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

func newAppointmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointment",
		Aliases: []string{"appt"},
		Short:   "Inspect availability and manage appointments (non-UI)",
	}
	cmd.AddCommand(newAppointmentAvailabilityCmd())
	cmd.AddCommand(newAppointmentBookCmd())
	cmd.AddCommand(newAppointmentShowCmd())
	cmd.AddCommand(newAppointmentCountsCmd())
	return cmd
}

// withService opens the configured store and hands a booking service to fn.
func withService(cfg config.Config, fn func(ctx context.Context, svc *booking.Service) error) error {
	ctx := context.Background()
	st, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, booking.NewService(st, booking.WithLocation(cfg.Location)))
}

func newAppointmentAvailabilityCmd() *cobra.Command {
	var all bool

	c := &cobra.Command{
		Use:   "availability",
		Short: "List bookable days in the window with remaining slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			return withService(cfg, func(ctx context.Context, svc *booking.Service) error {
				days, err := svc.Availability(ctx, policyFrom(cfg), all)
				if err != nil {
					return err
				}
				printAvailability(cmd.OutOrStdout(), days, cfg.DailyLimit)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&all, "all", false, "include days that are already full")
	return c
}

func printAvailability(w io.Writer, days []booking.DayAvailability, limit int) {
	if len(days) == 0 {
		fmt.Fprintln(w, "no open days")
		return
	}
	for _, d := range days {
		status := "open"
		if d.Full() {
			status = "full"
		}
		fmt.Fprintf(w, "%s %s remaining=%d/%d %s\n",
			models.FormatDay(d.Date), d.Date.Format("Mon"), d.Remaining, limit, status)
	}
}

func newAppointmentBookCmd() *cobra.Command {
	var req booking.Request

	c := &cobra.Command{
		Use:   "book",
		Short: "Reserve a slot on behalf of a visitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			return withService(cfg, func(ctx context.Context, svc *booking.Service) error {
				code, err := svc.Reserve(ctx, policyFrom(cfg), req)
				var verr *booking.ValidationError
				switch {
				case errors.As(err, &verr):
					return fmt.Errorf("%s: %s", verr.Key, verr.Message)
				case errors.Is(err, store.ErrDayFull):
					return errors.New(booking.DayFullMessage)
				case err != nil:
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "booked code=%s visit_date=%s print=%s/appointment/%s/print\n",
					code, req.VisitDate, cfg.BaseURL, code)
				return nil
			})
		},
	}

	f := c.Flags()
	f.StringVar(&req.FullName, "full-name", "", "visitor full name")
	f.StringVar(&req.MotherName, "mother-name", "", "mother's full name")
	f.StringVar(&req.Phone, "phone", "", "phone number")
	f.StringVar(&req.Email, "email", "", "optional email")
	f.StringVar(&req.NationalID, "national-id", "", "optional national ID")
	f.StringVar(&req.District, "district", "", "district")
	f.StringVar(&req.DateOfBirth, "date-of-birth", "", "date of birth (DD/MM/YYYY or YYYY-MM-DD)")
	f.StringVar(&req.VisitReason, "reason", "", "purpose of the visit")
	f.StringVar(&req.VisitDate, "visit-date", "", "visit date YYYY-MM-DD")
	f.StringVar(&req.PreferredTime, "preferred-time", "", "optional preferred time HH:MM")
	f.StringVar(&req.Notes, "notes", "", "optional notes")
	_ = c.MarkFlagRequired("visit-date")
	return c
}

func newAppointmentShowCmd() *cobra.Command {
	var code string

	c := &cobra.Command{
		Use:   "show",
		Short: "Show an appointment by confirmation code",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			return withService(cfg, func(ctx context.Context, svc *booking.Service) error {
				a, err := svc.Lookup(ctx, code)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no appointment with code %q", code)
				}
				if err != nil {
					return err
				}
				printAppointment(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}
	c.Flags().StringVar(&code, "code", "", "confirmation code")
	_ = c.MarkFlagRequired("code")
	return c
}

func printAppointment(w io.Writer, a models.Appointment) {
	fmt.Fprintf(w, "code=%s visit_date=%s name=%q mother=%q phone=%s district=%q dob=%s reason=%q created=%s\n",
		a.ConfirmationCode, models.FormatDay(a.VisitDate), a.FullName, a.MotherName, a.Phone,
		a.District, models.FormatDay(a.DateOfBirth), a.VisitReason, a.CreatedAt.UTC().Format(time.RFC3339))
}

func newAppointmentCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Print bookings per visit date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			return withService(cfg, func(ctx context.Context, svc *booking.Service) error {
				counts, err := svc.DayCounts(ctx)
				if err != nil {
					return err
				}
				sum := booking.Summarize(counts, svc.Today())
				out := cmd.OutOrStdout()
				for _, c := range sum.Days {
					fmt.Fprintf(out, "%s booked=%d/%d\n", models.FormatDay(c.Date), c.Count, cfg.DailyLimit)
				}
				fmt.Fprintf(out, "total=%d upcoming=%d today=%d\n", sum.Total, sum.Upcoming, sum.Today)
				return nil
			})
		},
	}
}
