package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/nira-appointments/internal/auth"
	"github.com/example/nira-appointments/internal/config"
	"github.com/example/nira-appointments/internal/store"
)

func newStaffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}
	cmd.AddCommand(newStaffAddCmd())
	return cmd
}

func newStaffAddCmd() *cobra.Command {
	var username, password string

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a staff account (username/password)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			ctx := context.Background()
			st, err := openStore(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer st.Close()

			authStore := auth.NewStore(st, cfg.CookieHashKey, cfg.CookieBlockKey)
			u, err := authStore.CreateUser(ctx, username, password)
			if errors.Is(err, store.ErrUserExists) {
				return fmt.Errorf("staff user %q already exists", username)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created staff user %q id=%d\n", u.Username, u.ID)
			return nil
		},
	}

	c.Flags().StringVar(&username, "username", "", "username")
	c.Flags().StringVar(&password, "password", "", "password")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}
