package main

import (
	"fmt"
	"strings"

	"github.com/MrEthical07/authflow"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in against the authentication service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			defer a.close()

			var err error
			if email == "" {
				if email, err = a.prompt("Email"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.readPassword("Password"); err != nil {
					return err
				}
			}

			_ = a.engine.Login(ctx, strings.TrimSpace(email), password)
			if _, err := a.report(); err != nil {
				return err
			}
			if s := a.engine.Session(); s != nil && s.User != nil {
				fmt.Fprintf(a.out, "%s <%s> (id %d)\n", s.User.Name, s.User.Email, s.User.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var in authflow.RegisterInput

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the authentication service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			defer a.close()

			fields := []struct {
				label  string
				dst    *string
				secret bool
			}{
				{"Name", &in.Name, false},
				{"Last name", &in.LastName, false},
				{"Email", &in.Email, false},
				{"Password", &in.Password, true},
			}
			for _, f := range fields {
				if *f.dst != "" {
					continue
				}
				read := a.prompt
				if f.secret {
					read = a.readPassword
				}
				v, err := read(f.label)
				if err != nil {
					return err
				}
				*f.dst = v
			}

			_ = a.engine.Register(ctx, in)
			_, err := a.report()
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	f.StringVar(&in.Email, "email", "", "account email")
	f.StringVar(&in.Password, "password", "", "account password (prompted when empty)")
	return cmd
}
