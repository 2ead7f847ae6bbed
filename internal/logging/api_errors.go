// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pterm/pterm"

	errs "pbiexport/cli/internal/errors"
)

// APIErrorType represents the category of a failed exchange with Power BI or the login service.
type APIErrorType int

const (
	APIErrorUnknown APIErrorType = iota
	APIErrorAuth
	APIErrorForbidden
	APIErrorNotFound
	APIErrorThrottled
	APIErrorUnavailable
	APIErrorConflict
)

// ClassifyAPIError categorizes err by its kind and, for remote API failures, its HTTP status.
func ClassifyAPIError(err error) APIErrorType {
	switch errs.KindOf(err) {
	case errs.Authentication:
		return APIErrorAuth
	case errs.WorkspaceNotFound, errs.NoExistingDataset:
		return APIErrorNotFound
	case errs.DatasetAlreadyExists:
		return APIErrorConflict
	}

	status := statusOf(err)
	switch {
	case status == http.StatusUnauthorized:
		return APIErrorAuth
	case status == http.StatusForbidden:
		return APIErrorForbidden
	case status == http.StatusNotFound:
		return APIErrorNotFound
	case status == http.StatusTooManyRequests:
		return APIErrorThrottled
	case status >= 500:
		return APIErrorUnavailable
	}
	return APIErrorUnknown
}

func statusOf(err error) int {
	for err != nil {
		if e, ok := err.(*errs.E); ok && e.Status != 0 {
			return e.Status
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}

// FormatAPIError renders err for the terminal with a short explanation and a next step.
func FormatAPIError(err error) string {
	var builder strings.Builder

	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Export failed"))
	builder.WriteString("\n\n")

	switch ClassifyAPIError(err) {
	case APIErrorAuth:
		builder.WriteString("Power BI rejected the credentials.\n")
		builder.WriteString("The access token may have expired or the account details are wrong.\n")
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Run 'pbiexport token' to obtain a fresh token"))

	case APIErrorForbidden:
		builder.WriteString("The account is not allowed to perform this operation.\n")
		builder.WriteString("Check that it is a member of the workspace with push permissions.\n")

	case APIErrorNotFound:
		builder.WriteString("A workspace or dataset could not be found.\n")
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Run 'pbiexport workspaces' or 'pbiexport datasets' to list what exists"))

	case APIErrorConflict:
		builder.WriteString("A dataset with this name already exists.\n")
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Use --policy append or --policy overwrite to reuse it"))

	case APIErrorThrottled:
		builder.WriteString("Power BI is throttling requests for this account.\n")
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Wait a minute or raise --buffer-size to send fewer requests"))

	case APIErrorUnavailable:
		builder.WriteString("The Power BI service is currently unavailable.\n")
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Please try again later"))

	default:
		builder.WriteString("The export could not be completed.\n")
	}

	builder.WriteString("\n")

	if err != nil {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	}

	return builder.String()
}

// PresentAPIError prints FormatAPIError(err) surrounded by blank lines.
func PresentAPIError(err error) {
	fmt.Println()
	fmt.Println(FormatAPIError(err))
	fmt.Println()
}
