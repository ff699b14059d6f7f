package reporter

import (
	"io"

	"github.com/goccy/go-json"
	"github.com/shibukawa/sqldoctest/testrunner/caseexecutor"
)

// jsonRecord is one line of the JSON lines report. Event names the kind of record.
type jsonRecord struct {
	Event       string   `json:"event"`
	RunID       string   `json:"run_id,omitempty"`
	File        string   `json:"file,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Header      string   `json:"header,omitempty"`
	Name        string   `json:"name,omitempty"`
	Depth       *int     `json:"depth,omitempty"`
	Line        int      `json:"line,omitempty"`
	Status      string   `json:"status,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Message     string   `json:"message,omitempty"`
	DurationMS  *float64 `json:"duration_ms,omitempty"`
	Tests       *int     `json:"tests,omitempty"`
	Passes      *int     `json:"passes,omitempty"`
	Failures    *int     `json:"failures,omitempty"`
	Todos       *int     `json:"todos,omitempty"`
	Skipped     bool     `json:"skipped,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// JSONLines writes one JSON object per event.
type JSONLines struct {
	enc  *json.Encoder
	file string
	err  error
}

var _ Reporter = (*JSONLines)(nil)

// NewJSONLines creates a reporter writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return &JSONLines{enc: enc}
}

func (j *JSONLines) write(rec jsonRecord) {
	if j.err != nil {
		return
	}

	j.err = j.enc.Encode(rec)
}

func (j *JSONLines) FileStarted(file File) {
	j.file = file.Path
	j.write(jsonRecord{Event: "file_started", File: file.Path, Description: file.Description, Tags: file.Tags})
}

func (j *JSONLines) SectionEntered(ev caseexecutor.SectionEvent) {
	j.write(jsonRecord{Event: "section", File: j.file, Header: ev.Header, Depth: ptr(ev.Depth)})
}

func (j *JSONLines) TestFinished(ev caseexecutor.TestEvent) {
	rec := jsonRecord{
		Event:      "test",
		File:       j.file,
		Name:       ev.Name,
		Depth:      ptr(ev.Depth),
		Line:       ev.Line,
		Status:     string(ev.Outcome.Status),
		Message:    ev.Outcome.Message,
		DurationMS: ptr(milliseconds(ev.Duration.Seconds())),
	}

	if ev.Outcome.Status == caseexecutor.StatusFail {
		rec.Kind = ev.Outcome.Kind.String()
	}

	j.write(rec)
}

func (j *JSONLines) FileFinished(result FileResult) {
	rec := aggregateRecord("file_finished", result.Aggregate)
	rec.File = result.Path
	rec.DurationMS = ptr(milliseconds(result.Duration.Seconds()))
	rec.Skipped = result.Skipped
	rec.Message = result.SkipReason

	if result.Err != nil {
		rec.Error = result.Err.Error()
	}

	j.write(rec)
	j.file = ""
}

// RunFinished writes the summary record and reports the first write error.
func (j *JSONLines) RunFinished(summary *Summary) error {
	rec := aggregateRecord("summary", summary.Total)
	rec.RunID = summary.RunID
	rec.DurationMS = ptr(milliseconds(summary.Duration.Seconds()))

	j.write(rec)

	return j.err
}

func aggregateRecord(event string, agg caseexecutor.Aggregate) jsonRecord {
	return jsonRecord{
		Event:    event,
		Tests:    ptr(agg.NumTests),
		Passes:   ptr(agg.NumPasses),
		Failures: ptr(agg.NumFailures()),
		Todos:    ptr(agg.NumTodos),
	}
}

func milliseconds(seconds float64) float64 {
	return float64(int64(seconds*1e6)) / 1e3
}

func ptr[T any](v T) *T {
	return &v
}
