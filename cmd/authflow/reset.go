package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authflow"
	"github.com/spf13/cobra"
)

const noResetSession = "No password reset in progress."

type resetStep int

const (
	stepEmail resetStep = iota
	stepCode
	stepPassword
)

func newResetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Recover a password with a one-time code",
		Long: `Without a subcommand, reset walks through email entry, code
verification and the new password in one session.

The start, verify and finish subcommands run a single step each. They keep
the session in Redis between runs, so --redis-addr is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			defer a.close()
			return a.interactiveReset(ctx)
		},
	}

	cmd.AddCommand(newResetStartCmd(a), newResetVerifyCmd(a), newResetFinishCmd(a))
	return cmd
}

func (a *app) interactiveReset(ctx context.Context) error {
	rc := a.engine.PasswordReset()
	step := stepEmail

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch step {
		case stepEmail:
			email, err := a.prompt("Email")
			if err != nil {
				return err
			}
			_, _ = rc.StartReset(ctx, strings.TrimSpace(email))
			if _, err := a.report(); err == nil {
				step = stepCode
			}

		case stepCode:
			if _, ok := rc.Email(ctx); !ok {
				fmt.Fprintln(a.out, noResetSession)
				step = stepEmail
				continue
			}
			code, err := a.prompt("Code")
			if err != nil {
				return err
			}
			rc.VerifyCode(ctx, code)
			out, err := a.report()
			switch {
			case err == nil:
				step = stepPassword
			case errors.Is(out.Cause, authflow.ErrResetCodeExpired), errors.Is(out.Cause, authflow.ErrResetNoCode):
				step = stepEmail
			}

		case stepPassword:
			if _, ok := rc.Email(ctx); !ok {
				fmt.Fprintln(a.out, noResetSession)
				step = stepEmail
				continue
			}
			pw, err := a.readPassword("New password")
			if err != nil {
				return err
			}
			_ = rc.FinishReset(ctx, pw)
			out, err := a.report()
			if err == nil {
				return nil
			}
			if !errors.Is(out.Cause, authflow.ErrPasswordPolicy) {
				step = stepEmail
			}
		}
	}
}

// openShared opens the engine for a single reset step. Steps run in separate
// processes, so the session has to live in Redis.
func (a *app) openShared(ctx context.Context, name string) error {
	if a.v.GetString(keyRedisAddr) == "" {
		return fmt.Errorf("reset %s needs --redis-addr to keep the session between runs", name)
	}
	return a.open(ctx)
}

// requireSession applies the guard every screen after email entry has.
func (a *app) requireSession(ctx context.Context) error {
	if _, ok := a.engine.PasswordReset().Email(ctx); ok {
		return nil
	}
	fmt.Fprintln(a.out, noResetSession, `Run "authflow reset start" first.`)
	return errReported
}

func newResetStartCmd(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Request a five digit reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.openShared(ctx, "start"); err != nil {
				return err
			}
			defer a.close()

			if email == "" {
				var err error
				if email, err = a.prompt("Email"); err != nil {
					return err
				}
			}
			_, _ = a.engine.PasswordReset().StartReset(ctx, strings.TrimSpace(email))
			_, err := a.report()
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")
	return cmd
}

func newResetVerifyCmd(a *app) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.openShared(ctx, "verify"); err != nil {
				return err
			}
			defer a.close()

			if err := a.requireSession(ctx); err != nil {
				return err
			}
			if code == "" {
				var err error
				if code, err = a.prompt("Code"); err != nil {
					return err
				}
			}
			a.engine.PasswordReset().VerifyCode(ctx, code)
			_, err := a.report()
			return err
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "code from the start step (prompted when empty)")
	return cmd
}

func newResetFinishCmd(a *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "finish",
		Short: "Set the new password and end the reset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.openShared(ctx, "finish"); err != nil {
				return err
			}
			defer a.close()

			if err := a.requireSession(ctx); err != nil {
				return err
			}
			if password == "" {
				var err error
				if password, err = a.readPassword("New password"); err != nil {
					return err
				}
			}
			_ = a.engine.PasswordReset().FinishReset(ctx, password)
			_, err := a.report()
			return err
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password (prompted when empty)")
	return cmd
}
