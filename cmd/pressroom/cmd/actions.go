package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
	"github.com/pressroom-io/pressroom/internal/domain/permission"
)

// actionEntry is the YAML shape of one permission table row.
type actionEntry struct {
	Action      string   `yaml:"action"`
	Roles       []string `yaml:"roles"`
	Scope       string   `yaml:"scope"`
	Destructive bool     `yaml:"destructive,omitempty"`
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Print the action permission table",
	Long: `Print the built-in action permission table as YAML.

Each entry shows which roles may dispatch the action and how the
permission is scoped:
  topic_scoped  the role must be held on the target topic
  any_topic     the role on any topic suffices
  global_only   only global admins may dispatch

Destructive actions additionally require params.confirmed=true.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		entries := make([]actionEntry, 0, len(dispatch.AllActionTypes))
		table := permission.Table()
		for _, actionType := range dispatch.AllActionTypes {
			rule, ok := table[actionType]
			if !ok {
				continue
			}
			roles := make([]string, len(rule.Roles))
			for i, role := range rule.Roles {
				roles[i] = string(role)
			}
			entries = append(entries, actionEntry{
				Action:      string(actionType),
				Roles:       roles,
				Scope:       string(rule.Class),
				Destructive: rule.Destructive,
			})
		}

		out, err := yaml.Marshal(entries)
		if err != nil {
			return fmt.Errorf("failed to marshal permission table: %w", err)
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
}
