// Package inspect renders the history ledger for `vitrine inspect`.
package inspect

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/vitrine/internal/history"
)

// Report is the structured JSON representation of a history report.
type Report struct {
	Surfaces  int               `json:"surfaces"`
	Open      int               `json:"open"`
	Artifacts int               `json:"artifacts"`
	Results   int               `json:"results"`
	Entries   []history.Surface `json:"entries"`
}

// BuildReport renders a terminal-friendly report of the newest limit surfaces.
func BuildReport(ctx context.Context, db *sql.DB, limit int) (string, error) {
	report, err := gatherReportData(ctx, db, limit)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "History Report\n")
	fmt.Fprintf(&out, "Surfaces    : %d (%d open)\n", report.Surfaces, report.Open)
	fmt.Fprintf(&out, "Results     : %d\n", report.Results)
	fmt.Fprintf(&out, "Artifacts   : %d\n", report.Artifacts)
	fmt.Fprintf(&out, "\n")

	for i, sf := range report.Entries {
		fmt.Fprintf(&out, "[%d] %s :: %s\n", i+1, sf.ID, renderUnset(sf.Title, "<untitled>"))
		fmt.Fprintf(&out, "    kind       : %s\n", sf.Kind)
		fmt.Fprintf(&out, "    opened     : %s\n", sf.CreatedAt.Local().Format(time.DateTime))
		if sf.ClosedAt != nil {
			fmt.Fprintf(&out, "    closed     : %s (%s, after %s)\n",
				sf.ClosedAt.Local().Format(time.DateTime), sf.CloseReason,
				sf.ClosedAt.Sub(sf.CreatedAt).Round(time.Millisecond))
		} else {
			fmt.Fprintf(&out, "    closed     : <open>\n")
		}
		if sf.ExportPath != "" {
			fmt.Fprintf(&out, "    export     : %s\n", sf.ExportPath)
		}
		if sf.DownloadDir != "" {
			fmt.Fprintf(&out, "    downloads  : %s\n", sf.DownloadDir)
		}
		fmt.Fprintf(&out, "    results    : %d (%d bytes)\n", sf.Results, sf.ResultBytes)
		if len(sf.Artifacts) == 0 {
			fmt.Fprintf(&out, "    artifacts  : <none>\n")
		} else {
			fmt.Fprintf(&out, "    artifacts  :\n")
			for _, a := range sf.Artifacts {
				fmt.Fprintf(&out, "      - %s [%s] %s\n", a.Path, a.Kind, shortSum(a.Checksum))
			}
		}
		fmt.Fprintf(&out, "\n")
	}

	return strings.TrimRight(out.String(), "\n") + "\n", nil
}

// BuildJSONReport returns the machine-readable JSON history report.
func BuildJSONReport(ctx context.Context, db *sql.DB, limit int) (string, error) {
	report, err := gatherReportData(ctx, db, limit)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func gatherReportData(ctx context.Context, db *sql.DB, limit int) (*Report, error) {
	entries, err := history.NewStore(db).Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	report := &Report{Entries: make([]history.Surface, 0, len(entries))}
	for _, sf := range entries {
		report.Surfaces++
		if sf.ClosedAt == nil {
			report.Open++
		}
		report.Results += sf.Results
		report.Artifacts += len(sf.Artifacts)
		report.Entries = append(report.Entries, sf)
	}
	return report, nil
}

func shortSum(sum string) string {
	if sum == "" {
		return "<no checksum>"
	}
	if len(sum) > 12 {
		return "blake3:" + sum[:12]
	}
	return "blake3:" + sum
}

func renderUnset(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
