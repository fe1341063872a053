package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"carrental/backend/internal/services"
	"carrental/backend/internal/store"
)

// Roster is the YAML file read by `mechanic import`.
type Roster struct {
	Mechanics []services.MechanicInput `yaml:"mechanics"`
}

// ParseRoster decodes a roster and rejects unknown keys.
func ParseRoster(r io.Reader) (*Roster, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var roster Roster
	if err := dec.Decode(&roster); err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}
	for i, m := range roster.Mechanics {
		if m.UserID == "" || m.Password == "" || m.Pincode == "" {
			return nil, fmt.Errorf("invalid roster: entry %d needs userId, password and pincode", i+1)
		}
	}
	return &roster, nil
}

func newMechanicCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mechanic",
		Short: "Manage mechanic accounts",
	}
	cmd.AddCommand(newMechanicAddCommand(a))
	cmd.AddCommand(newMechanicImportCommand(a))
	return cmd
}

func newMechanicAddCommand(a *app) *cobra.Command {
	var (
		input   services.MechanicInput
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a mechanic",
		Long: `Create a mechanic. The password is stored as a bcrypt hash.
When --password is omitted it is read from MECHANIC_PASSWORD.
An existing mechanic is only overwritten with --replace.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input.Password == "" {
				input.Password = os.Getenv("MECHANIC_PASSWORD")
			}
			return a.withStore(cmd.Context(), func(st store.DirectoryStore) error {
				accounts := services.NewAccountService(st, a.logger)
				if err := accounts.AddMechanic(cmd.Context(), input, replace); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "mechanic %s saved (pincode %s)\n", input.UserID, input.Pincode)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&input.UserID, "user-id", "", "mechanic user id")
	cmd.Flags().StringVar(&input.Password, "password", "", "mechanic password")
	cmd.Flags().StringVar(&input.Name, "name", "", "display name")
	cmd.Flags().StringVar(&input.Pincode, "pincode", "", "pincode the mechanic serves")
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing mechanic")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("pincode")
	return cmd
}

type importResult struct {
	Imported int      `json:"imported"`
	UserIDs  []string `json:"userIds"`
}

func newMechanicImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <roster.yaml>",
		Short: "Create or replace every mechanic listed in a YAML roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open roster: %w", err)
			}
			defer f.Close()

			roster, err := ParseRoster(f)
			if err != nil {
				return err
			}

			result := importResult{UserIDs: []string{}}
			err = a.withStore(cmd.Context(), func(st store.DirectoryStore) error {
				accounts := services.NewAccountService(st, a.logger)
				for _, m := range roster.Mechanics {
					if err := accounts.AddMechanic(cmd.Context(), m, true); err != nil {
						return fmt.Errorf("mechanic %s: %w", m.UserID, err)
					}
					result.Imported++
					result.UserIDs = append(result.UserIDs, m.UserID)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), a.opts.Format, result, func(w io.Writer) {
				fmt.Fprintf(w, "imported %d mechanic(s)\n", result.Imported)
			})
		},
	}
}
