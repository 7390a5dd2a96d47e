package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

func newLayout(t *testing.T) storage.Layout {
	t.Helper()
	root := t.TempDir()
	l := storage.NewLayout(filepath.Join(root, "json"), filepath.Join(root, "table"))
	require.NoError(t, l.EnsureDirs())
	return l
}

func widgetPipeline(t *testing.T, text stubText) *Pipeline {
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) { return widgetResponse, nil })
	return New(text, gen, invoiceSchema(t), nil)
}

type recordedJob struct {
	batch, file string
	status      constants.JobStatus
	kind        constants.ErrorKind
	raw         string
}

type memJobs struct {
	mu   sync.Mutex
	jobs []*recordedJob
	fail bool
}

func (m *memJobs) Start(_ context.Context, batchID, fileName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("ledger down")
	}
	m.jobs = append(m.jobs, &recordedJob{batch: batchID, file: fileName, status: constants.JobStatusRunning})
	return fileName, nil
}

func (m *memJobs) find(id string) *recordedJob {
	for _, j := range m.jobs {
		if j.file == id {
			return j
		}
	}
	return nil
}

func (m *memJobs) FinishSuccess(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.find(id).status = constants.JobStatusOK
	return nil
}

func (m *memJobs) FinishFailure(_ context.Context, id string, kind constants.ErrorKind, _, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.find(id)
	j.status, j.kind, j.raw = constants.JobStatusFailed, kind, raw
	return nil
}

func readTable(t *testing.T, l storage.Layout) [][]string {
	t.Helper()
	b, err := l.ReadTable()
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(b))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunBatch_EndToEndWidget(t *testing.T) {
	l := newLayout(t)
	proc := NewProcessor(l, widgetPipeline(t, stubText{"inv1.pdf": "Invoice A100"}), nil, nil)

	res, err := proc.RunBatch(context.Background(), []Upload{{Name: "inv1.pdf", Data: []byte("%PDF-1.4")}})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, StatusDone, res.Outcomes[0].Status)
	assert.NotEmpty(t, res.BatchID)

	raw, err := os.ReadFile(filepath.Join(l.JSONDir, "inv1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(raw))

	doc, err := os.ReadFile(filepath.Join(l.JSONDir, "inv1.json"))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(doc, &m))
	assert.Equal(t, "A100", m["invoice_no"])
	assert.Nil(t, m["discount"])

	records := readTable(t, l)
	require.Len(t, records, 2)
	assert.Equal(t, export.Columns, records[0])
	assert.Equal(t, []string{
		"inv1.pdf", "A100", "2024-01-05", "Acme", "1 Main St",
		"10.0", "", "", "10.0", "", "Net 30",
		`[{"description":"Widget","quantity":2,"unit_price":5.0,"amount":10.0}]`,
	}, records[1])

	_, err = l.ReadWorkbook()
	assert.NoError(t, err)
	assert.Equal(t, l.TablePath(), res.TablePath)
}

func TestRunBatch_PartialFailure(t *testing.T) {
	l := newLayout(t)
	jobs := &memJobs{}
	// b.pdf is unknown to the stub and fails to read
	proc := NewProcessor(l, widgetPipeline(t, stubText{"a.pdf": "A", "c.pdf": "C"}), jobs, nil)

	res, err := proc.RunBatch(context.Background(), []Upload{
		{Name: "a.pdf", Data: []byte("a")},
		{Name: "b.pdf", Data: []byte("b")},
		{Name: "c.pdf", Data: []byte("c")},
	})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"},
		[]string{res.Outcomes[0].File, res.Outcomes[1].File, res.Outcomes[2].File})
	assert.Equal(t, StatusFailed, res.Outcomes[1].Status)
	assert.Equal(t, constants.KindRead, res.Outcomes[1].Kind)
	assert.Contains(t, res.Outcomes[1].Error, "not a pdf")
	assert.Equal(t, 1, res.Failed())
	assert.Len(t, res.Rows, 2)

	records := readTable(t, l)
	require.Len(t, records, 3)
	assert.Equal(t, "a.pdf", records[1][0])
	assert.Equal(t, "c.pdf", records[2][0])

	_, err = os.Stat(filepath.Join(l.JSONDir, "b.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(filepath.Join(l.JSONDir, "b.pdf"))
	assert.NoError(t, err, "upload is persisted before processing")

	require.Len(t, jobs.jobs, 3)
	assert.Equal(t, constants.JobStatusOK, jobs.jobs[0].status)
	assert.Equal(t, constants.JobStatusFailed, jobs.jobs[1].status)
	assert.Equal(t, constants.KindRead, jobs.jobs[1].kind)
	assert.Equal(t, res.BatchID, jobs.jobs[2].batch)
}

func TestRunBatch_FailureKinds(t *testing.T) {
	l := newLayout(t)
	calls := 0
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "", &common.ProviderError{Provider: "gemini", Status: 401, Err: errors.New("API key not valid")}
		}
		return `{"invoice_no": "X"}`, nil
	})
	jobs := &memJobs{}
	p := New(stubText{".pdf": "text"}, gen, invoiceSchema(t), nil)
	proc := NewProcessor(l, p, jobs, nil)

	res, err := proc.RunBatch(context.Background(), []Upload{
		{Name: "one.pdf", Data: []byte("1")},
		{Name: "two.pdf", Data: []byte("2")},
		{Name: "../", Data: []byte("3")},
	})
	require.NoError(t, err)

	assert.Equal(t, constants.KindProvider, res.Outcomes[0].Kind)
	assert.Equal(t, constants.KindParse, res.Outcomes[1].Kind)
	assert.Equal(t, constants.KindIO, res.Outcomes[2].Kind)
	assert.Equal(t, `{"invoice_no": "X"}`, jobs.jobs[1].raw)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.TablePath)
}

func TestRunBatch_ZeroRowsLeavesPriorTable(t *testing.T) {
	l := newLayout(t)
	require.NoError(t, os.WriteFile(l.TablePath(), []byte("previous"), 0o644))
	proc := NewProcessor(l, widgetPipeline(t, stubText{}), nil, nil)

	res, err := proc.RunBatch(context.Background(), []Upload{{Name: "bad.pdf", Data: []byte("x")}})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)

	b, err := l.ReadTable()
	require.NoError(t, err)
	assert.Equal(t, "previous", string(b))

	res, err = proc.RunBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
}

func TestRunBatch_OverwriteIsIdempotent(t *testing.T) {
	l := newLayout(t)
	proc := NewProcessor(l, widgetPipeline(t, stubText{".pdf": "x"}), nil, nil)
	uploads := []Upload{{Name: "a.pdf", Data: []byte("a")}, {Name: "b.pdf", Data: []byte("b")}}

	_, err := proc.RunBatch(context.Background(), uploads)
	require.NoError(t, err)
	first, err := l.ReadTable()
	require.NoError(t, err)

	_, err = proc.RunBatch(context.Background(), uploads)
	require.NoError(t, err)
	second, err := l.ReadTable()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, readTable(t, l), 3)
}

func TestRunBatch_LedgerFailureDoesNotFailBatch(t *testing.T) {
	l := newLayout(t)
	proc := NewProcessor(l, widgetPipeline(t, stubText{".pdf": "x"}), &memJobs{fail: true}, nil)

	res, err := proc.RunBatch(context.Background(), []Upload{{Name: "a.pdf", Data: []byte("a")}})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}

func TestRunBatch_CanceledContext(t *testing.T) {
	l := newLayout(t)
	proc := NewProcessor(l, widgetPipeline(t, stubText{".pdf": "x"}), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := proc.RunBatch(ctx, []Upload{{Name: "a.pdf", Data: []byte("a")}})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, StatusFailed, res.Outcomes[0].Status)
}

func TestRunBatch_SingleLineInvoice(t *testing.T) {
	const response = "Here is the data:\n```json\n" + `{
  "invoice_no": "A100",
  "date": "2024-01-31",
  "billed_to": "Acme",
  "address": "1 Road",
  "line_items": [{"description": "Widget", "quantity": 3, "unit_price": 50.00, "amount": 150.00}],
  "subtotal": 150.00,
  "discount": null,
  "shipping": null,
  "total": 150.00,
  "notes": null,
  "terms": null
}` + "\n```"
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) { return response, nil })
	text := stubText{"a100.pdf": "INVOICE A100\nWidget 3 x 50.00 = 150.00\nTotal 150.00\n"}
	l := newLayout(t)
	jobs := &memJobs{}
	proc := NewProcessor(l, New(text, gen, invoiceSchema(t), nil), jobs, nil)

	res, err := proc.RunBatch(context.Background(), []Upload{{Name: "a100.pdf", Data: []byte("%PDF-1.4")}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	const wantItems = `[{"description":"Widget","quantity":3,"unit_price":50.00,"amount":150.00}]`
	row := res.Rows[0]
	assert.Equal(t, "a100.pdf", row.File)
	assert.Equal(t, "A100", row.InvoiceNo)
	assert.Equal(t, "150.00", row.Subtotal)
	assert.Equal(t, "150.00", row.Total)
	assert.Empty(t, row.Discount)
	assert.Empty(t, row.Notes)
	assert.Equal(t, wantItems, row.LineItems)

	records := readTable(t, l)
	require.Len(t, records, 2)
	assert.Equal(t, []string{
		"a100.pdf", "A100", "2024-01-31", "Acme", "1 Road",
		"150.00", "", "", "150.00", "", "", wantItems,
	}, records[1])

	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, res.BatchID, jobs.jobs[0].batch)
	assert.Equal(t, constants.JobStatusOK, jobs.jobs[0].status)
}
