// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pbiexport/cli/internal/keychain"
)

var (
	logoutProject string
	logoutAll     bool
)

// logoutCmd removes access tokens saved by the token command.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove saved access tokens from the OS keychain",
	Long: `The logout command removes the access token saved for a project, or every
token saved by pbiexport when --all is given. Tokens already issued stay valid
at Power BI until they expire.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			pterm.Error.Println("Secure storage is not available on this system")
			return presentedError{err}
		}

		if logoutAll {
			projects, _ := km.Projects()
			if err := km.ClearAll(); err != nil {
				return present(err, "clearing the keychain")
			}
			pterm.Success.Printf("Removed %d saved token(s)\n", len(projects))
			return nil
		}

		project := logoutProject
		if project == "" {
			project = settings.Project
		}
		if project == "" {
			projects, err := km.Projects()
			if err != nil {
				return present(err, "reading the keychain")
			}
			if len(projects) == 0 {
				pterm.Info.Println("No saved tokens")
				return nil
			}
			pterm.Info.Println("Saved projects:")
			for _, p := range projects {
				pterm.Printf("  • %s\n", p)
			}
			pterm.Println("Run 'pbiexport logout --project NAME' or 'pbiexport logout --all'")
			return nil
		}

		if err := km.ClearToken(project); err != nil {
			return present(err, "clearing the keychain")
		}
		pterm.Success.Printf("Removed the token for project %q\n", project)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().StringVar(&logoutProject, "project", "", "Project whose token is removed")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Remove every saved token")
}
