package root

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in through the identity provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res := app.Manager.Login(commandContext(cmd))
			if !res.Success {
				return errors.New("login failed: " + res.Reason)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, goodStyle.Render(iconTrophy+" logged in"))
			fmt.Fprintln(out, labelValue("Principal", res.Identity.Principal))
			if res.Wallet != nil {
				fmt.Fprintln(out, labelValue("Wallet", res.Wallet.Address))
			}
			return nil
		},
	}
}

func newLogoutCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear all stored progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			app.Manager.Logout(commandContext(cmd))
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("logged out, progress cleared"))
			return nil
		},
	}
}
