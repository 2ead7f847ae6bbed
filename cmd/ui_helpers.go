// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// spinnerOut receives inline spinners so stdout stays clean for piping.
var spinnerOut io.Writer = os.Stderr

// startInlineSpinner draws frames followed by text on one line of w until the
// returned function is called. The line is cleared on stop.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", line)
				i++
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

// withSpinner runs fn while an inline spinner shows text on stderr.
func withSpinner(text string, fn func() error) error {
	stop := startInlineSpinner(spinnerOut, text, []string{"|", "/", "-", "\\"}, 120*time.Millisecond)
	defer stop()
	return fn()
}
