package datarecording

import (
	"fmt"
	"io"

	"github.com/tanklab/cstr/history"
)

// TickTable is the table name continuous runs record into.
const TickTable = "ticks"

// StreamTicks creates the tick table and inserts every record arriving on
// the tap until the tap is unsubscribed, then flushes. It is meant to run
// as its own goroutine alongside the simulation loop.
func StreamTicks(r Recorder, tap *history.Tap) {
	r.CreateTable(TickTable, history.Record{})

	for rec := range tap.Records() {
		r.InsertData(TickTable, rec)
	}

	r.Flush()
}

// csvHeader matches the row format of the original batch reports.
var csvHeader = "Time_sec,Q_set,Caf_set,Tc_set,Tc_actual,T_real,Ca_real"

// ExportCSV writes records as the fixed-precision CSV table batch reports
// are built from.
func ExportCSV(w io.Writer, records []history.Record) error {
	if _, err := fmt.Fprintln(w, csvHeader); err != nil {
		return err
	}

	for _, r := range records {
		_, err := fmt.Fprintf(w, "%.4f,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f\n",
			r.Time, r.FlowSet, r.FeedConcSet, r.CoolantSet,
			r.CoolantActual, r.TReal, r.CaReal)
		if err != nil {
			return err
		}
	}

	return nil
}
