package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{"timestamp", "phase", "code", "valueA", "valueB"}

// #region write-csv
// WriteCSV writes events in the offline analysis layout
// (timestamp, phase, code, valueA, valueB).
func WriteCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range events {
		row := []string{
			strconv.FormatFloat(e.Timestamp, 'f', 6, 64),
			e.Phase,
			strconv.FormatUint(uint64(e.Code), 10),
			strconv.FormatFloat(e.ValueA, 'g', -1, 64),
			strconv.FormatFloat(e.ValueB, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
// #endregion write-csv

// #region read-csv
// ReadCSV parses a file produced by WriteCSV. Columns are located by header
// name so files without a phase column are accepted too.
func ReadCSV(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[h] = i
	}
	for _, required := range []string{"timestamp", "code", "valueA", "valueB"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var events []Event
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		e, err := parseRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func parseRow(rec []string, idx map[string]int) (Event, error) {
	field := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	var e Event
	var err error
	if e.Timestamp, err = strconv.ParseFloat(field("timestamp"), 64); err != nil {
		return Event{}, fmt.Errorf("timestamp: %w", err)
	}
	code, err := strconv.ParseUint(field("code"), 0, 16)
	if err != nil {
		return Event{}, fmt.Errorf("code: %w", err)
	}
	e.Code = Code(code)
	if e.ValueA, err = strconv.ParseFloat(field("valueA"), 64); err != nil {
		return Event{}, fmt.Errorf("valueA: %w", err)
	}
	if e.ValueB, err = strconv.ParseFloat(field("valueB"), 64); err != nil {
		return Event{}, fmt.Errorf("valueB: %w", err)
	}
	e.Phase = field("phase")
	return e, nil
}
// #endregion read-csv
