package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds the global flags.
type RootOptions struct {
	Format string // text | json
	At     string // RFC3339, overrides the device clock
}

var validFormats = []string{"text", "json"}

// openFunc builds the device for a command run.
type openFunc func(cmd *cobra.Command) (*device, func(), error)

func NewRootCommand(open openFunc) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "siku",
		Short:         "Siku - one day, one set of missions",
		Long:          "Follow the missions of the day, offline as a guest or logged in to your account.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.At, "at", "", "act as of this RFC3339 time")

	cmd.AddCommand(newTodayCommand(opts, open))
	cmd.AddCommand(newMissionsCommand(opts, open))
	cmd.AddCommand(newCompleteCommand(opts, open))
	cmd.AddCommand(newProgressCommand(opts, open))
	cmd.AddCommand(newLoginCommand(opts, open))
	cmd.AddCommand(newLogoutCommand(opts, open))
	cmd.AddCommand(newSyncCommand(opts, open))

	return cmd
}

// now returns the --at time, or the device clock.
func (opts *RootOptions) now(d *device) (time.Time, error) {
	if opts.At == "" {
		return d.now(), nil
	}
	at, err := time.Parse(time.RFC3339, opts.At)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be an RFC3339 timestamp (got %q)", opts.At)
	}
	return at, nil
}
