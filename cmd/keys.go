package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate COOKIE_HASH_KEY and COOKIE_BLOCK_KEY values for the staff session cookie",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := randomKey(32)
			if err != nil {
				return err
			}
			block, err := randomKey(32)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "export COOKIE_HASH_KEY=%s\n", hash)
			fmt.Fprintf(out, "export COOKIE_BLOCK_KEY=%s\n", block)
			return nil
		},
	}
}

func randomKey(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
