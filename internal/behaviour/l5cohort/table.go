package l5cohort

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
)

// keyColumns precede the metric columns in the summary CSV.
var keyColumns = []string{"mouse", "genotype", "session", "exp_name"}

// SummaryTable is one row per recording, in manifest order.
type SummaryTable struct {
	Rows []*RecordingSummary
}

// Append adds a row.
func (t *SummaryTable) Append(s *RecordingSummary) {
	t.Rows = append(t.Rows, s)
}

// Header returns the CSV header row.
func Header() []string {
	return append(append([]string(nil), keyColumns...), Metrics...)
}

// WriteCSV writes the table with an empty cell for every unset metric.
func (t *SummaryTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range t.Rows {
		row := []string{r.Key.Mouse, r.Key.Genotype, r.Key.Session, r.Key.ExpName()}
		for _, m := range Metrics {
			if v, ok := r.Value(m); ok {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV. Unknown columns are ignored.
func ReadCSV(r io.Reader) (*SummaryTable, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read summary header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	for _, c := range keyColumns[:3] {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("summary header missing %q column", c)
		}
	}

	t := &SummaryTable{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s := NewRecordingSummary(behaviour.RecordingKey{
			Mouse:    rec[index["mouse"]],
			Genotype: rec[index["genotype"]],
			Session:  rec[index["session"]],
		})
		for _, m := range Metrics {
			i, ok := index[m]
			if !ok || rec[i] == "" {
				continue
			}
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, %s: %w", line, m, err)
			}
			s.Set(m, v)
		}
		t.Append(s)
	}
	return t, nil
}
