package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/lead-distribution/internal/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <system-key>",
	Short: "Print the bcrypt hash to store in AUTH_SYSTEM_KEY_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashSystemKey(args[0], bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
		return err
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
