// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/powerbi"
	"pbiexport/cli/internal/terminal"
)

var (
	datasetsAccess    accessFlags
	datasetsWorkspace string
	deleteYes         bool
)

// datasetsCmd lists the datasets of a workspace.
var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List Power BI datasets in a workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := datasetsClient(ctx)
		if err != nil {
			return err
		}

		var refs []powerbi.DatasetRef
		err = withSpinner("Listing datasets", func() error {
			var err error
			refs, err = client.ListDatasets(ctx)
			return err
		})
		if err != nil {
			return present(err, "listing datasets")
		}
		if len(refs) == 0 {
			pterm.Info.Println("No datasets in this workspace")
			return nil
		}

		data := pterm.TableData{{"Name", "ID", "URL"}}
		for _, d := range refs {
			data = append(data, []string{d.Name, d.ID, d.URL()})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

// datasetsDeleteCmd deletes every dataset with the given name.
var datasetsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete the datasets with the given name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]
		client, err := datasetsClient(ctx)
		if err != nil {
			return err
		}

		ids, err := client.ListDatasetIDsByName(ctx, name)
		if err != nil {
			return present(err, "listing datasets")
		}
		if len(ids) == 0 {
			return present(errs.Newf(errs.NoExistingDataset, "no dataset named %q", name), "deleting datasets")
		}

		if !deleteYes {
			if !terminal.IsInteractive() {
				return present(errs.New(errs.InvalidConfig, "refusing to delete without --yes"), "")
			}
			prompt := fmt.Sprintf("Delete %d dataset(s) named %q? [y/N]: ", len(ids), name)
			answer, err := terminal.PromptLine(spinnerOut, cmd.InOrStdin(), prompt)
			if err != nil {
				return err
			}
			if a := strings.ToLower(answer); a != "y" && a != "yes" {
				pterm.Info.Println("Nothing deleted")
				return nil
			}
		}

		for _, id := range ids {
			if err := client.DeleteDataset(ctx, id); err != nil {
				return present(err, "deleting dataset "+id)
			}
			pterm.Success.Printf("Deleted %s (%s)\n", name, id)
		}
		return nil
	},
}

func datasetsClient(ctx context.Context) (*powerbi.Client, error) {
	client, job, err := datasetsAccess.client(ctx)
	if err != nil {
		return nil, present(err, "obtaining an access token")
	}
	workspace := datasetsWorkspace
	if workspace == "" {
		workspace = job.Workspace
	}
	gid, err := client.ResolveGroupID(ctx, workspace)
	if err != nil {
		return nil, present(err, "resolving the workspace")
	}
	client.SetGroupID(gid)
	return client, nil
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.AddCommand(datasetsDeleteCmd)

	datasetsAccess.register(datasetsCmd)
	datasetsCmd.PersistentFlags().StringVarP(&datasetsWorkspace, "workspace", "w", "", "Workspace name (default \"My workspace\")")
	datasetsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Delete without asking")
}
