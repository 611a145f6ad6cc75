package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var readPasswordFunc = term.ReadPassword // mockable

func newTodayCommand(opts *RootOptions, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "List the missions of the current program day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			now, err := opts.now(d)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			group, err := d.client.Today(ctx, now)
			if err != nil {
				return err
			}
			rec, err := d.session.Progress(ctx)
			if err != nil {
				return err
			}
			out := newOutput(cmd, opts)
			if opts.Format == "json" {
				return out.json(group)
			}
			out.dayGroups(rec, group)
			return nil
		},
	}
}

func newMissionsCommand(opts *RootOptions, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "missions",
		Short: "List the visible catalog, day by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			now, err := opts.now(d)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			groups, err := d.client.Catalog(ctx, now)
			if err != nil {
				return err
			}
			rec, err := d.session.Progress(ctx)
			if err != nil {
				return err
			}
			out := newOutput(cmd, opts)
			if opts.Format == "json" {
				return out.json(groups)
			}
			out.dayGroups(rec, groups...)
			return nil
		},
	}
}

func newCompleteCommand(opts *RootOptions, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "complete MISSION_ID",
		Short: "Mark a mission of today or a past day as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			now, err := opts.now(d)
			if err != nil {
				return err
			}
			rec, err := d.complete(cmd.Context(), args[0], now)
			if err != nil {
				return err
			}
			out := newOutput(cmd, opts)
			if opts.Format == "json" {
				return out.json(rec)
			}
			out.record(rec)
			return nil
		},
	}
}

func newProgressCommand(opts *RootOptions, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show points and completed missions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			id, err := d.session.Identity(ctx)
			if err != nil {
				return err
			}
			rec, err := d.session.Progress(ctx)
			if err != nil {
				return err
			}
			out := newOutput(cmd, opts)
			if opts.Format == "json" {
				return out.json(rec)
			}
			out.line(muted.Render(id.String()))
			out.record(rec)
			return nil
		},
	}
}

func newLoginCommand(opts *RootOptions, open openFunc) *cobra.Command {
	var uname string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and merge guest progress into the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" {
				return fmt.Errorf("--username is required")
			}
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password:")
			pwd, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			d, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			now, err := opts.now(d)
			if err != nil {
				return err
			}
			res, err := d.login(cmd.Context(), uname, string(pwd), now)
			if err != nil {
				return err
			}
			out := newOutput(cmd, opts)
			if opts.Format == "json" {
				return out.json(res)
			}
			out.reconciliation(res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&uname, "username", "u", "", "username or email")
	return cmd
}

func newLogoutCommand(opts *RootOptions, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the account; progress is kept as a guest from now on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err = d.session.Logout(cmd.Context()); err != nil {
				return err
			}
			newOutput(cmd, opts).line("logged out")
			return nil
		},
	}
}

func newSyncCommand(opts *RootOptions, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Retry merging pending guest progress into the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			now, err := opts.now(d)
			if err != nil {
				return err
			}
			res, err := d.session.Sync(cmd.Context(), now)
			if err != nil {
				return err
			}
			out := newOutput(cmd, opts)
			if opts.Format == "json" {
				return out.json(res)
			}
			out.reconciliation(res)
			return nil
		},
	}
}

