package reports

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"bitbucket.org/mmdatafocus/telco_backend/models"
)

const (
	summarySheet = "Run"
	errorsSheet  = "Errors"
	timeLayout   = "2006-01-02 15:04:05"
)

// SyncRunWorkbook lays out one run on a summary sheet and its per-document errors on a second sheet.
func SyncRunWorkbook(run *models.SyncRun, errs []models.SyncError) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(errorsSheet); err != nil {
		return nil, err
	}

	rows := [][]interface{}{
		{"Run", run.ID},
		{"Kind", run.Kind},
		{"Status", run.Status},
		{"Triggered By", run.TriggeredBy},
		{"Actor", run.Actor},
		{"Correlation Id", run.CorrelationId},
		{"Limit", run.PageLimit},
		{"Updated", run.Updated},
		{"Skipped", run.Skipped},
		{"Failed", run.Failed},
		{"Started At", formatTime(run.StartedAt)},
		{"Finished At", formatTime(run.FinishedAt)},
		{"Duration (ms)", run.DurationMs},
	}
	reasons := make([]string, 0, len(run.SkipReasons))
	for reason := range run.SkipReasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		rows = append(rows, []interface{}{"Skipped: " + reason, run.SkipReasons[reason]})
	}
	for i, row := range rows {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, err
		}
	}

	header := []interface{}{"Source Kind", "Source Id", "Code", "Message", "Retryable", "Recorded At"}
	if err := f.SetSheetRow(errorsSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, e := range errs {
		row := []interface{}{e.SourceKind, e.SourceId, e.ErrorCode, e.Message, e.Retryable, e.CreatedAt.Format(timeLayout)}
		if err := f.SetSheetRow(errorsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WriteSyncRun streams the workbook, e.g. into an HTTP response.
func WriteSyncRun(w io.Writer, run *models.SyncRun, errs []models.SyncError) error {
	f, err := SyncRunWorkbook(run, errs)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func SaveSyncRun(filename string, run *models.SyncRun, errs []models.SyncError) error {
	f, err := SyncRunWorkbook(run, errs)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}

func ExportFilename(run *models.SyncRun) string {
	return fmt.Sprintf("sync-run-%d-%s.xlsx", run.ID, run.Kind)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}
