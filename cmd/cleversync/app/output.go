package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	v1 "github.com/BillSOS/CleverSyncSOS-sub001/internal/api/v1"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/orchestrator"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func validateOutput(format string) error {
	if format != outputTable && format != outputJSON {
		return fmt.Errorf("unsupported output %q (expected %s or %s)", format, outputTable, outputJSON)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderSummary prints a run summary. JSON output uses the admin API shape.
func renderSummary(w io.Writer, format string, s *orchestrator.Summary) error {
	resp := v1.NewSyncResponse(s)
	if format == outputJSON {
		return writeJSON(w, resp)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Tenant", "Name", "Outcome", "Mode", "Changed", "Baseline", "Duration", "Detail")
	for _, t := range resp.Tenants {
		if err := table.Append([]string{
			strconv.FormatInt(t.TenantID, 10),
			t.Name,
			t.Outcome,
			t.Mode,
			strconv.Itoa(t.Changed),
			t.Baseline,
			(time.Duration(t.DurationMS) * time.Millisecond).String(),
			tenantDetail(t),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "run %s scope=%s total=%d succeeded=%d partial=%d failed=%d skipped=%d cancelled=%d in %s\n",
		resp.RunID, resp.Scope, resp.Total, resp.Succeeded, resp.Partial, resp.Failed, resp.Skipped, resp.Cancelled,
		s.Duration.Round(time.Millisecond))
	return err
}

func tenantDetail(t v1.TenantResponse) string {
	switch {
	case t.LockedBy != nil:
		return fmt.Sprintf("locked by %s (%s)", t.LockedBy.Holder, t.LockedBy.Initiator)
	case t.Error != "":
		return t.Error
	default:
		return t.Reason
	}
}

func renderLock(w io.Writer, format string, info *lock.Info) error {
	resp := v1.NewLockResponse(info)
	if format == outputJSON {
		return writeJSON(w, resp)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Scope", "Holder", "Initiator", "Acquired", "Expires", "Age")
	if err := table.Append([]string{
		resp.Scope,
		resp.Holder,
		resp.Initiator,
		resp.AcquiredAt.Format(time.RFC3339),
		resp.ExpiresAt.Format(time.RFC3339),
		info.Age.Round(time.Second).String(),
	}); err != nil {
		return err
	}
	return table.Render()
}

func renderHistory(w io.Writer, format string, records []history.Record) error {
	resp := v1.NewHistoryResponse(records)
	if format == outputJSON {
		return writeJSON(w, resp)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Started", "Entity", "Mode", "Status", "Examined", "Changed", "Failed", "Last Event", "Error")
	for _, r := range resp {
		if err := table.Append([]string{
			r.StartedAt.Format(time.RFC3339),
			r.EntityType,
			r.Mode,
			r.Status,
			strconv.Itoa(r.RecordsExamined),
			strconv.Itoa(r.RecordsChanged),
			strconv.Itoa(r.RecordsFailed),
			r.LastEventID,
			r.Error,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
