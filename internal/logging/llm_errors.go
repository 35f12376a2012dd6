// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"strings"

	"github.com/pterm/pterm"
)

// UpstreamErrorType represents the category of LLM server error
type UpstreamErrorType int

const (
	UpstreamErrorUnknown UpstreamErrorType = iota
	UpstreamErrorNetwork
	UpstreamErrorAuth
	UpstreamErrorTimeout
	UpstreamErrorOverloaded
)

// ParseUpstreamError categorizes an LLM server error message
func ParseUpstreamError(errMsg string) UpstreamErrorType {
	lower := strings.ToLower(errMsg)

	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") || strings.Contains(lower, "connection reset") {
		return UpstreamErrorNetwork
	}
	if strings.Contains(lower, "deadline") || strings.Contains(lower, "timeout") {
		return UpstreamErrorTimeout
	}
	if strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") {
		return UpstreamErrorAuth
	}
	if strings.Contains(lower, "429") || strings.Contains(lower, "503") || strings.Contains(lower, "overloaded") {
		return UpstreamErrorOverloaded
	}

	return UpstreamErrorUnknown
}

// FormatUpstreamError formats an LLM server error in a user-friendly way
func FormatUpstreamError(errMsg string) string {
	errType := ParseUpstreamError(errMsg)

	var builder strings.Builder

	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("LLM Server Unreachable"))
	builder.WriteString("\n\n")

	switch errType {
	case UpstreamErrorNetwork:
		builder.WriteString("Could not reach the inference server.\n")
		builder.WriteString("This usually happens when:\n")
		builder.WriteString("  • The server is not running\n")
		builder.WriteString("  • The base URL points to the wrong host or port\n")
		builder.WriteString("  • A firewall is blocking the connection\n")

	case UpstreamErrorTimeout:
		builder.WriteString("The inference server took too long to respond.\n")
		builder.WriteString("This could be due to:\n")
		builder.WriteString("  • A large model still loading into memory\n")
		builder.WriteString("  • The server handling another long request\n")

	case UpstreamErrorAuth:
		builder.WriteString("The inference server rejected the API key.\n")
		builder.WriteString("To fix this:\n")
		builder.WriteString("  • Run 'dbchat credentials setup' to store a valid key\n")
		builder.WriteString("  • Or set DBCHAT_LLM_API_KEY in the environment\n")

	case UpstreamErrorOverloaded:
		builder.WriteString("The inference server is overloaded or unavailable.\n")
		builder.WriteString("Possible reasons:\n")
		builder.WriteString("  • Too many concurrent requests\n")
		builder.WriteString("  • The server is restarting\n")

	default:
		builder.WriteString("The request to the inference server failed.\n")
	}

	builder.WriteString("\n")
	builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Check the server and base URL, then try again"))

	if strings.TrimSpace(errMsg) != "" {
		builder.WriteString("\n\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(errMsg)))
	}

	return builder.String()
}
