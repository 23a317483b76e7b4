package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pressroom-io/pressroom/internal/domain/identity"
)

var useArgon2id bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate a hash for an API key",
	Long: `Generate a hash of an API key for use in config.

By default the output is "sha256:<hex>", usable directly in the
auth.api_keys.key field. With --argon2id a salted argon2id hash is
produced instead, which resists offline brute force of the config file.

Example:
  pressroom hash-key "my-secret-api-key"
  # Output: sha256:7d5e8c...

Security note: the key will appear in shell history. Consider using an
environment variable:
  pressroom hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if useArgon2id {
			hash, err := identity.HashKeyArgon2id(args[0])
			if err != nil {
				return fmt.Errorf("failed to hash key: %w", err)
			}
			fmt.Println(hash)
			return nil
		}
		fmt.Println("sha256:" + identity.HashKey(args[0]))
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&useArgon2id, "argon2id", false, "produce a salted argon2id hash instead of sha256")
	rootCmd.AddCommand(hashKeyCmd)
}
