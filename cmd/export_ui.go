// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"

	"pbiexport/cli/internal/export"
	"pbiexport/cli/internal/logging"
)

// brailleFrames are the spinner frames used by long-running commands.
var brailleFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// progress shows a single updating line with the number of rows exported so far.
type progress struct {
	area *pterm.AreaPrinter
	rows atomic.Int64
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// startProgress hides the cursor and starts redrawing the progress line.
// It returns a progress that only counts rows when no area can be started.
func startProgress(label string) *progress {
	p := &progress{stop: make(chan struct{})}
	cursor.Hide()
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start()
	if err != nil {
		cursor.Show()
		return p
	}
	p.area = area

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(120 * time.Millisecond)
		defer t.Stop()
		i := 0
		for {
			select {
			case <-t.C:
				i++
				area.Update(fmt.Sprintf("%s %s %s rows", brailleFrames[i%len(brailleFrames)], label,
					pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(p.rows.Load())))
			case <-p.stop:
				return
			}
		}
	}()
	return p
}

func (p *progress) Set(n int) { p.rows.Store(int64(n)) }

// Stop removes the progress line and shows the cursor again. It is safe to call twice.
func (p *progress) Stop() {
	p.once.Do(func() {
		close(p.stop)
		p.wg.Wait()
		if p.area != nil {
			_ = p.area.Stop()
			cursor.Show()
		}
	})
}

// printExportHeader prints what is about to be exported.
func printExportHeader(dataset, workspace, policy, location string) {
	if workspace == "" {
		workspace = "My workspace"
	}
	label := pterm.NewStyle(pterm.FgLightCyan)
	pterm.Println()
	pterm.Println(label.Sprint("→ Dataset:   ") + pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(dataset))
	pterm.Println(label.Sprint("→ Workspace: ") + workspace)
	pterm.Println(label.Sprint("→ Policy:    ") + policy)
	pterm.Println(label.Sprint("→ Source:    ") + pterm.NewStyle(pterm.FgLightBlue).Sprint(logging.Mask(location)))
	pterm.Println()
}

// reportLines renders a close report as label/value lines.
func reportLines(r *export.Report) []string {
	lines := []string{
		fmt.Sprintf("Dataset:  %s (%s)", r.Dataset.Name, r.Dataset.ID),
		fmt.Sprintf("Table:    %s", r.Table),
		fmt.Sprintf("Policy:   %s", r.Policy),
		fmt.Sprintf("Rows:     %d in %d batches", r.Rows, r.Flushes),
	}
	if r.FailedFlushes > 0 {
		lines = append(lines,
			fmt.Sprintf("Rejected: %d batches, %d rows", r.FailedFlushes, r.FailedRows),
			fmt.Sprintf("Last:     %s", logging.Mask(r.LastError)),
		)
	}
	if r.Refreshed {
		lines = append(lines, "Refresh:  requested")
	}
	lines = append(lines,
		fmt.Sprintf("Duration: %s", r.Duration.Round(time.Millisecond)),
		fmt.Sprintf("Open:     %s", r.URL),
	)
	return lines
}

// printReport prints the close report in a box.
func printReport(r *export.Report) {
	title := pterm.NewStyle(pterm.FgGreen, pterm.Bold).Sprint("Export complete")
	if !r.OK() {
		title = pterm.NewStyle(pterm.FgYellow, pterm.Bold).Sprint("Export finished with rejected batches")
	}
	pterm.DefaultBox.WithTitle(title).WithPadding(1).Println(strings.Join(reportLines(r), "\n"))
	pterm.Println()
}
