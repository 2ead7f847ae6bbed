// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pbiexport/cli/internal/config"
	"pbiexport/cli/internal/powerbi"
)

// accessFlags select the token for commands that only read from Power BI.
type accessFlags struct {
	job         string
	project     string
	contextFile string
	contextKey  string
}

func (a *accessFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&a.job, "job", "", "YAML job file whose auth section is used")
	cmd.PersistentFlags().StringVar(&a.project, "project", "", "Keychain project holding a token saved by 'pbiexport token'")
	cmd.PersistentFlags().StringVar(&a.contextFile, "context-file", "", "JSON file holding the access token")
	cmd.PersistentFlags().StringVar(&a.contextKey, "context-key", "", "Key of the token in the context file or environment")
}

// client builds a Power BI client from the job file and flags.
func (a *accessFlags) client(ctx context.Context) (*powerbi.Client, config.Job, error) {
	job, err := loadJob(a.job)
	if err != nil {
		return nil, job, err
	}
	if a.project != "" || a.contextFile != "" || a.contextKey != "" {
		job.Auth.Credentials = nil
		job.Auth.Method = ""
		job.Auth.OAuth = &config.OAuthConfig{Project: a.project, ContextFile: a.contextFile, Key: a.contextKey}
	}
	finishJob(&job)

	provider, err := providerFor(job)
	if err != nil {
		return nil, job, err
	}
	c, err := connect(ctx, provider)
	return c, job, err
}

var workspacesAccess accessFlags

// workspacesCmd lists the workspaces the token can see.
var workspacesCmd = &cobra.Command{
	Use:     "workspaces",
	Aliases: []string{"groups"},
	Short:   "List Power BI workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, _, err := workspacesAccess.client(ctx)
		if err != nil {
			return present(err, "obtaining an access token")
		}

		var groups []powerbi.Group
		err = withSpinner("Listing workspaces", func() error {
			var err error
			groups, err = client.ListGroups(ctx)
			return err
		})
		if err != nil {
			return present(err, "listing workspaces")
		}

		data := pterm.TableData{{"Name", "ID"}}
		data = append(data, []string{powerbi.DefaultWorkspace, "me"})
		for _, g := range groups {
			data = append(data, []string{g.Name, g.ID})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(workspacesCmd)
	workspacesAccess.register(workspacesCmd)
}
