package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"luxeplan/internal/auth"
	"luxeplan/internal/booking"
	"luxeplan/internal/slots"
	"luxeplan/internal/watch"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "luxeplan",
		Short:         "Check decoration service availability and manage bookings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("LUXEPLAN_CONFIG_PATH"), "path to config.yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newSlotsCmd(opts))
	root.AddCommand(newBookCmd(opts))
	root.AddCommand(newRescheduleCmd(opts))
	root.AddCommand(newWatchCmd(opts))

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "luxeplan %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}

func newSlotsCmd(opts *rootOptions) *cobra.Command {
	var serviceID, date, exclude string

	c := &cobra.Command{
		Use:   "slots",
		Short: "Show which time slots are free for a service on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath, opts.verbose)
			if err != nil {
				return err
			}
			defer a.Close()
			a.out = cmd.OutOrStdout()

			day, err := parseDay(date)
			if err != nil {
				return err
			}
			reserved, err := a.query.FetchReservedSlots(cmd.Context(), serviceID, day, exclude)
			fmt.Fprintf(a.out, "%s on %s\n", serviceID, slots.CanonicalDate(day))
			if err != nil {
				fmt.Fprint(a.out, slots.UnknownBoard(slots.AllSlots()))
				return err
			}
			fmt.Fprint(a.out, slots.BuildBoard(slots.AllSlots(), reserved))
			return nil
		},
	}
	c.Flags().StringVar(&serviceID, "service", "", "service id")
	c.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	c.Flags().StringVar(&exclude, "exclude", "", "booking id whose own slot counts as free")
	_ = c.MarkFlagRequired("service")
	return c
}

func newBookCmd(opts *rootOptions) *cobra.Command {
	var (
		service  booking.ServiceRef
		date     string
		slot     string
		location string
	)

	c := &cobra.Command{
		Use:   "book",
		Short: "Book a time slot for a decoration service",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath, opts.verbose)
			if err != nil {
				return err
			}
			defer a.Close()
			a.out = cmd.OutOrStdout()

			user, err := bookingUser()
			if err != nil {
				return err
			}
			day, err := parseDay(date)
			if err != nil {
				return err
			}

			s := booking.NewSession(booking.ModeCreate, booking.NewCreateDraft(service, user, time.Now()), a.deps())
			defer s.Close()
			return submit(cmd.Context(), a, s, day, slot, location)
		},
	}
	c.Flags().StringVar(&service.ID, "service", "", "service id")
	c.Flags().StringVar(&service.Name, "service-name", "", "service name")
	c.Flags().StringVar(&service.Category, "category", "", "service category")
	c.Flags().Float64Var(&service.Cost, "cost", 0, "service cost")
	c.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	c.Flags().StringVar(&slot, "time", "", `time slot, e.g. "02:00 PM"`)
	c.Flags().StringVar(&location, "location", "", "event location")
	_ = c.MarkFlagRequired("service")
	return c
}

func newRescheduleCmd(opts *rootOptions) *cobra.Command {
	var date, slot, location string

	c := &cobra.Command{
		Use:   "reschedule <booking-id>",
		Short: "Change the date, time or location of an existing booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath, opts.verbose)
			if err != nil {
				return err
			}
			defer a.Close()
			a.out = cmd.OutOrStdout()

			user, err := bookingUser()
			if err != nil {
				return err
			}
			existing, err := a.client.GetBooking(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load booking %s: %w", args[0], err)
			}
			draft, err := booking.NewEditDraft(*existing, user)
			if err != nil {
				return err
			}

			day := draft.Date
			if date != "" {
				if day, err = slots.ParseDate(date); err != nil {
					return err
				}
			}
			if slot == "" {
				slot = string(draft.Time)
			}
			if location == "" {
				location = draft.Location
			}

			s := booking.NewSession(booking.ModeEdit, draft, a.deps())
			defer s.Close()
			return submit(cmd.Context(), a, s, day, slot, location)
		},
	}
	c.Flags().StringVar(&date, "date", "", "new date as YYYY-MM-DD")
	c.Flags().StringVar(&slot, "time", "", "new time slot")
	c.Flags().StringVar(&location, "location", "", "new event location")
	return c
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		serviceID string
		dates     []string
		interval  time.Duration
	)

	c := &cobra.Command{
		Use:   "watch",
		Short: "Poll availability and notify when slots become free",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath, opts.verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(dates) == 0 {
				dates = []string{slots.CanonicalDate(time.Now())}
			}
			subs := make([]watch.Subscription, 0, len(dates))
			for _, d := range dates {
				day, err := slots.ParseDate(d)
				if err != nil {
					return err
				}
				subs = append(subs, watch.Subscription{ServiceID: serviceID, Date: day})
			}
			if interval <= 0 {
				interval = a.cfg.WatchInterval()
			}

			ctx := cmd.Context()
			go serve(ctx, "health", a.cfg.HealthCheckPort(), healthHandler(ctx, a.client, a.rdb), &a.logger)
			if a.cfg.Monitoring.PrometheusEnabled {
				go serve(ctx, "metrics", a.cfg.PrometheusPort(), metricsHandler(a.registry), &a.logger)
			}

			w := watch.New(a.query, a.notifier, interval, &a.logger, a.metrics)
			if err := w.Run(ctx, subs); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	c.Flags().StringVar(&serviceID, "service", "", "service id")
	c.Flags().StringSliceVar(&dates, "date", nil, "dates to watch as YYYY-MM-DD (repeatable, default today)")
	c.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from config)")
	_ = c.MarkFlagRequired("service")
	return c
}

// submit applies the selection to s, shows the board and sends the booking.
func submit(ctx context.Context, a *app, s *booking.Session, day time.Time, slot, location string) error {
	view := s.SetDate(ctx, day)
	fmt.Fprintf(a.out, "%s on %s\n", s.Draft().Service.ID, slots.CanonicalDate(day))
	fmt.Fprint(a.out, view.Board)

	if slot != "" {
		parsed, err := slots.ParseSlot(slot)
		if err != nil {
			return err
		}
		s.SetTime(parsed)
		if !s.SelectedSlotAvailable() {
			fmt.Fprintf(a.out, "%s looks taken; trying anyway.\n", parsed)
		}
	}
	s.SetLocation(location)

	sent := s.Draft()
	b, err := s.Submit(ctx)
	if err != nil {
		return err
	}
	if b.ID == "" {
		// Empty success body: report what was sent.
		fmt.Fprintf(a.out, "Booking saved: %s %s at %s\n", sent.DateString(), sent.Time, sent.Location)
		return nil
	}
	fmt.Fprintf(a.out, "Booking %s: %s %s at %s (%s)\n", b.ID, b.Date, b.Time, b.Location, b.Status)
	return nil
}

func bookingUser() (auth.Identity, error) {
	user, err := auth.FromEnv()
	if err != nil {
		return auth.Identity{}, err
	}
	if !user.CanBook() {
		return auth.Identity{}, fmt.Errorf("role %q cannot make bookings", user.Role)
	}
	return user, nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return slots.Today(time.Now()), nil
	}
	return slots.ParseDate(s)
}
