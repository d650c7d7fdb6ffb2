package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

var csvHeader = []string{"Month", "Income", "Expense", "Net"}

// WriteCSV writes the monthly view as comma separated rows under a fixed
// header. Net is computed per row.
func WriteCSV(w io.Writer, buckets []MonthBucket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range buckets {
		row := []string{b.Label, b.Income.StringFixed(2), b.Expense.StringFixed(2), b.Net().StringFixed(2)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", b.Label, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names the download after the export day,
// e.g. financial-report-2024-06-30.csv.
func ExportFilename(now time.Time) string {
	return "financial-report-" + now.Format(time.DateOnly) + ".csv"
}
