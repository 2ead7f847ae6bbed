// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pbiexport/cli/internal/auth"
	"pbiexport/cli/internal/config"
	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/keychain"
	"pbiexport/cli/internal/terminal"
)

var tokenFlags struct {
	project  string
	username string
	clientID string
	print    bool
}

// tokenCmd exchanges account credentials for an access token and stores it in
// the OS keychain, where 'export --project' reads it.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate a Power BI access token and store it in the OS keychain",
	Long: `The token command exchanges a Power BI account and an Azure AD application
(client id and client secret) for an access token. The token is stored in the
OS keychain under a project name; run 'pbiexport export --project NAME' to use it.

Missing values are read from PBIEXPORT_USERNAME, PBIEXPORT_PASSWORD,
PBIEXPORT_CLIENT_ID and PBIEXPORT_CLIENT_SECRET, then prompted for.
Access tokens expire after about an hour.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		project := strings.TrimSpace(tokenFlags.project)
		if project == "" {
			project = settings.Project
		}
		if project == "" && !tokenFlags.print {
			return present(errs.New(errs.InvalidConfig, "a project name is required (--project or PBIEXPORT_PROJECT)"), "")
		}

		job := config.Job{Auth: config.AuthConfig{
			Method: auth.MethodCredentials,
			Credentials: &auth.Credentials{
				Username: tokenFlags.username,
				ClientID: tokenFlags.clientID,
			},
		}}
		job.ApplyEnv(os.LookupEnv)
		if err := promptCredentials(job.Auth.Credentials); err != nil {
			return err
		}
		if err := job.Auth.Credentials.Validate(); err != nil {
			return present(err, "")
		}

		provider, err := providerFor(job)
		if err != nil {
			return present(err, "selecting credentials")
		}

		var cred auth.Credential
		err = withSpinner("Requesting access token", func() error {
			var err error
			cred, err = provider.Credential(cmd.Context())
			return err
		})
		if err != nil {
			return present(err, "requesting an access token")
		}

		if tokenFlags.print {
			pterm.Println(cred.Token)
			return nil
		}

		km, err := keychain.GetManager()
		if err != nil {
			pterm.Error.Println("Secure storage is not available on this system")
			return presentedError{err}
		}
		if err := km.SaveToken(project, cred.Token); err != nil {
			pterm.Error.Println("Failed to save the token to the keychain")
			return presentedError{err}
		}

		pterm.Success.Printf("Access token saved for project %q\n", project)
		if exp := cred.ExpiresAt(); !exp.IsZero() {
			pterm.Printf("   Expires at %s\n", exp.Local().Format("15:04:05"))
		}
		pterm.Printf("   Run: pbiexport export --project %s --dataset NAME --source FILE\n", project)
		return nil
	},
}

// promptCredentials fills empty credential fields from the terminal.
func promptCredentials(c *auth.Credentials) error {
	if !terminal.IsInteractive() {
		return nil
	}
	if c.Username == "" {
		v, err := terminal.PromptLine(os.Stderr, os.Stdin, "Username: ")
		if err != nil {
			return err
		}
		c.Username = v
	}
	if c.Password == "" {
		v, err := terminal.PromptPassword("Password: ")
		if err != nil {
			return err
		}
		c.Password = v
	}
	if c.ClientID == "" {
		v, err := terminal.PromptLine(os.Stderr, os.Stdin, "Client id: ")
		if err != nil {
			return err
		}
		c.ClientID = v
	}
	if c.ClientSecret == "" {
		v, err := terminal.PromptPassword("Client secret: ")
		if err != nil {
			return err
		}
		c.ClientSecret = v
	}
	return nil
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenFlags.project, "project", "", "Keychain project name to store the token under")
	tokenCmd.Flags().StringVar(&tokenFlags.username, "username", "", "Power BI account name")
	tokenCmd.Flags().StringVar(&tokenFlags.clientID, "client-id", "", "Azure AD application (client) id")
	tokenCmd.Flags().BoolVar(&tokenFlags.print, "print", false, "Print the token instead of storing it")
}
