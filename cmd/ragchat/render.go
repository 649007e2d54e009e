package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/user/ragchat/internal/types"
	"github.com/user/ragchat/pkg/rag"
)

// printMessage writes one conversation turn in the terminal layout.
func printMessage(w io.Writer, m types.Message) {
	who := "You"
	if m.Role == types.AuthorAgent {
		who = "Agent"
	}
	fmt.Fprintf(w, "%s (%s):\n%s\n", who, humanize.Time(m.Timestamp), m.Content)
	if m.Data != nil {
		printDetails(w, m.Data)
	}
}

func printDetails(w io.Writer, d *rag.AskResponse) {
	fmt.Fprintf(w, "\nConfidence: %d%% (%s)\n", int(math.Round(d.Confidence*100)), d.Level())
	if d.LowConfidence() {
		fmt.Fprintln(w, "! Low confidence: the answer may be unreliable. Verify with sources.")
	}
	if len(d.Notes) > 0 {
		fmt.Fprintln(w, "Security notices:")
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
	if d.SecurityFlagged() {
		fmt.Fprintln(w, "! Prompt injection attempt detected in this request.")
	}
	if len(d.Citations) > 0 {
		fmt.Fprintln(w, "Sources:")
		for i, c := range d.Citations {
			loc := c.Source
			if c.Loc != "" {
				loc += ", " + c.Loc
			}
			fmt.Fprintf(w, "  %d. %s (%s) - %q\n", i+1, c.DocID, loc, c.Quote)
		}
	}
	fmt.Fprintln(w, formatMetrics(d.Metrics))
}

func formatMetrics(m rag.Metrics) string {
	parts := []string{
		fmt.Sprintf("%.0fms", m.LatencyMS),
		humanize.Comma(int64(m.TokensEst)) + " tokens",
		fmt.Sprintf("$%.4f", m.CostEst),
		fmt.Sprintf("top-k %.0f", m.TopK),
		humanize.Comma(int64(m.DocsUsed)) + " docs",
	}
	return "[" + strings.Join(parts, " | ") + "]"
}

// connectivityLabel is the status line shown for a connectivity state.
func connectivityLabel(st types.ConnectivityState) string {
	switch st {
	case types.ConnectivityConnected:
		return "Connected"
	case types.ConnectivityDisconnected:
		return "Disconnected"
	default:
		return "Not checked"
	}
}

// maskKey shows the last four characters of a credential. Keys too short to
// keep most of them hidden are masked entirely.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "***"
	}
	return "***" + key[len(key)-4:]
}
