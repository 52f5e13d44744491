package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/philipparndt/canalview/internal/chart"
	"github.com/philipparndt/canalview/internal/format"
	"github.com/philipparndt/canalview/internal/scene"
	"github.com/philipparndt/canalview/internal/service"
	"github.com/philipparndt/canalview/pkg/geometry"
	"github.com/philipparndt/canalview/pkg/stl"
	"github.com/philipparndt/canalview/pkg/viewer"
)

const analysisResponse = `{
  "right": {
    "volume_total_mm3": 1234.567,
    "volume_cartilaginous_mm3": 600,
    "volume_bony_mm3": 634.567,
    "istmo_position_mm": 12.3456,
    "istmo_position_norm": 0.5001,
    "canal_length_mm": 24.6,
    "sections_used": 80,
    "convergence_error_mm3": 1.2,
    "convergence_error_cm3": 0.0012,
    "relative_error_percent": 2.345,
    "s_norm": [0, 0.25, 0.5, 0.75, 1],
    "a_norm": [1, 0.6, 0.2, 0.5, 0.9]
  },
  "left": {
    "volume_total_mm3": 1100,
    "istmo_position_norm": 0.45,
    "s_norm": [0, 0.5, 1],
    "a_norm": [1, 0.3, 0.8]
  },
  "comparison": {
    "total_volume_diff_percent": 11.5,
    "istmo_shift_mm": -0.8,
    "istmo_shift_norm": 0.05
  }
}`

type statusRecorder struct {
	mu      sync.Mutex
	history []string
}

func (r *statusRecorder) SetStatus(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, text)
}

func (r *statusRecorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return ""
	}
	return r.history[len(r.history)-1]
}

type tableRecorder struct {
	mu     sync.Mutex
	tables map[Table][]format.Row
}

func newTableRecorder() *tableRecorder {
	return &tableRecorder{tables: make(map[Table][]format.Row)}
}

func (r *tableRecorder) SetTable(table Table, rows []format.Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[table] = rows
}

func (r *tableRecorder) ClearTable(table Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, table)
}

type nopSurface struct{}

func (nopSurface) Render(*viewer.Scene, *viewer.Camera) {}
func (nopSurface) SetSize(int, int)                     {}

func meshUpload(name string) *Upload {
	model := stl.Box("box", geometry.NewVector3(0, 0, 0), geometry.NewVector3(4, 2, 1))
	return &Upload{Name: name, Data: stl.EncodeBinary(model)}
}

func newTestServer(t *testing.T, status int, body string, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

type fixture struct {
	session  *Session
	status   *statusRecorder
	tables   *tableRecorder
	charts   *chart.Engine
	right    *scene.Viewport
	left     *scene.Viewport
	requests *atomic.Int32
}

func newFixture(t *testing.T, status int, body string) *fixture {
	requests := &atomic.Int32{}
	server := newTestServer(t, status, body, requests)
	f := newFixtureWithServer(server)
	f.requests = requests
	return f
}

func newFixtureWithServer(server *httptest.Server) *fixture {
	f := &fixture{
		status:   &statusRecorder{},
		tables:   newTableRecorder(),
		charts:   chart.NewEngine(nil, chart.Options{Width: 320, Height: 160}),
		right:    scene.NewViewport(scene.Right, nopSurface{}, stl.Loader{}, scene.DefaultOptions()),
		left:     scene.NewViewport(scene.Left, nopSurface{}, stl.Loader{}, scene.DefaultOptions()),
		requests: &atomic.Int32{},
	}
	client := service.New(server.URL, server.Client())
	f.session = NewSession(client, f.right, f.left, f.charts, f.status, f.tables)
	return f
}

func TestAnalyzeEndToEnd(t *testing.T) {
	f := newFixture(t, http.StatusOK, analysisResponse)

	err := f.session.Analyze(context.Background(), meshUpload("right.stl"), meshUpload("left.STL"))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if f.status.Last() != StatusDone {
		t.Errorf("status failed: expected %q, got %q", StatusDone, f.status.Last())
	}
	if f.status.history[0] != StatusProcessing {
		t.Errorf("status failed: expected processing first, got %q", f.status.history[0])
	}
	if f.session.Phase() != Idle {
		t.Errorf("Phase failed: expected idle, got %v", f.session.Phase())
	}

	right := f.tables.tables[TableRight]
	if len(right) != len(SideKeys) {
		t.Fatalf("right table failed: expected %d rows, got %d", len(SideKeys), len(right))
	}
	if right[0].Value != "1234.6 mm³ (1.235 cm³)" {
		t.Errorf("right volume failed: got %q", right[0].Value)
	}
	if right[4].Value != "0.500" {
		t.Errorf("right isthmus failed: got %q", right[4].Value)
	}
	if right[9].Value != "2.35%" {
		t.Errorf("right error percent failed: got %q", right[9].Value)
	}
	if left := f.tables.tables[TableLeft]; len(left) != len(SideKeys) || left[2].Value != format.Placeholder {
		t.Errorf("left table failed: got %v", left)
	}
	if cmp := f.tables.tables[TableCompare]; len(cmp) != len(ComparisonKeys) || cmp[3].Value != "-0.80 mm" {
		t.Errorf("comparison table failed: got %v", cmp)
	}

	if f.charts.Live() != 2 {
		t.Errorf("charts failed: expected 2 live, got %d", f.charts.Live())
	}
	if h := f.charts.Current(chart.SlotComparison); h == nil || h.Values[0] != 0.5001 || h.Values[1] != 0.45 {
		t.Errorf("comparison chart failed: got %v", h)
	}

	if f.right.MeshCount() != 1 || f.left.MeshCount() != 1 {
		t.Errorf("previews failed: expected one mesh each, got %d/%d", f.right.MeshCount(), f.left.MeshCount())
	}
	if f.session.Result() == nil {
		t.Errorf("Result failed: expected stored result")
	}
}

func TestAnalyzeMissingInput(t *testing.T) {
	f := newFixture(t, http.StatusOK, analysisResponse)

	err := f.session.Analyze(context.Background(), meshUpload("right.stl"), nil)
	if !errors.Is(err, ErrInputValidation) {
		t.Errorf("expected ErrInputValidation, got %v", err)
	}
	if f.requests.Load() != 0 {
		t.Errorf("no request must be issued, got %d", f.requests.Load())
	}
	if f.status.Last() != StatusMissingInput {
		t.Errorf("status failed: expected %q, got %q", StatusMissingInput, f.status.Last())
	}
	if f.right.MeshCount() != 0 {
		t.Errorf("no preview must load on invalid input")
	}
}

func TestAnalyzeServerError(t *testing.T) {
	f := newFixture(t, http.StatusUnprocessableEntity, `{"error": "Left mesh is not watertight"}`)

	err := f.session.Analyze(context.Background(), meshUpload("right.stl"), meshUpload("left.stl"))
	var reqErr *service.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if f.status.Last() != "Left mesh is not watertight" {
		t.Errorf("status failed: got %q", f.status.Last())
	}
	if len(f.tables.tables) != 0 || f.charts.Live() != 0 {
		t.Errorf("no results must be shown on error")
	}
	if f.right.MeshCount() != 1 {
		t.Errorf("preview must still load when the request fails")
	}
}

func TestAnalyzeClearsStaleOutputs(t *testing.T) {
	f := newFixture(t, http.StatusOK, analysisResponse)
	if err := f.session.Analyze(context.Background(), meshUpload("r.stl"), meshUpload("l.stl")); err != nil {
		t.Fatal(err)
	}
	old := f.charts.Current(chart.SlotProfile)

	failing := newFixture(t, http.StatusInternalServerError, `{}`)
	failing.session.charts = f.charts
	failing.session.tables = f.tables

	_ = failing.session.Analyze(context.Background(), meshUpload("r.stl"), meshUpload("l.stl"))
	if old.Alive() || f.charts.Live() != 0 {
		t.Errorf("stale charts must be destroyed when a new run starts")
	}
	if len(f.tables.tables) != 0 {
		t.Errorf("stale tables must be cleared when a new run starts")
	}
	if failing.status.Last() != service.GenericMessage {
		t.Errorf("status failed: expected generic message, got %q", failing.status.Last())
	}
}

func TestAnalyzePreviewFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, http.StatusOK, analysisResponse)

	broken := &Upload{Name: "right.stl", Data: []byte("garbage")}
	if err := f.session.Analyze(context.Background(), broken, meshUpload("left.stl")); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	last := f.status.Last()
	if !strings.HasPrefix(last, StatusDone) || !strings.Contains(last, "right preview") {
		t.Errorf("status failed: expected done with preview note, got %q", last)
	}
	if f.right.MeshCount() != 0 || f.left.MeshCount() != 1 {
		t.Errorf("previews failed: got %d/%d", f.right.MeshCount(), f.left.MeshCount())
	}
	if len(f.tables.tables) != 3 {
		t.Errorf("tables must render despite preview failure")
	}
}

func TestAnalyzeSkipsUnsupportedPreview(t *testing.T) {
	f := newFixture(t, http.StatusOK, analysisResponse)

	if err := f.session.Analyze(context.Background(), &Upload{Name: "right.ply", Data: []byte("ply")}, meshUpload("left.stl")); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if f.status.Last() != StatusDone {
		t.Errorf("unsupported preview is not an error, got status %q", f.status.Last())
	}
	if f.right.MeshCount() != 0 {
		t.Errorf("unsupported format must skip the preview")
	}
	if f.requests.Load() != 1 {
		t.Errorf("request must still be sent, got %d", f.requests.Load())
	}
}

func TestAnalyzeProfileMismatchNote(t *testing.T) {
	body := `{"right": {"istmo_position_norm": 0.4, "s_norm": [0, 1], "a_norm": [1]},
	          "left": {"istmo_position_norm": 0.6}, "comparison": {}}`
	f := newFixture(t, http.StatusOK, body)

	if err := f.session.Analyze(context.Background(), meshUpload("r.stl"), meshUpload("l.stl")); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !strings.Contains(f.status.Last(), "profile chart") {
		t.Errorf("status failed: expected profile chart note, got %q", f.status.Last())
	}
	if h := f.charts.Current(chart.SlotComparison); h == nil || !h.Alive() {
		t.Errorf("comparison chart must render despite profile failure")
	}
}

func TestAnalyzeFiles(t *testing.T) {
	f := newFixture(t, http.StatusOK, analysisResponse)

	dir := t.TempDir()
	path := filepath.Join(dir, "right.stl")
	if err := os.WriteFile(path, meshUpload("right.stl").Data, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := f.session.AnalyzeFiles(context.Background(), path, ""); !errors.Is(err, ErrInputValidation) {
		t.Errorf("expected ErrInputValidation, got %v", err)
	}
	if err := f.session.AnalyzeFiles(context.Background(), path, path); err != nil {
		t.Errorf("AnalyzeFiles failed: %v", err)
	}
	if err := f.session.AnalyzeFiles(context.Background(), path, filepath.Join(dir, "missing.stl")); err == nil {
		t.Errorf("expected read error for missing file")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAnalyzeMalformedProfileKeepsTables(t *testing.T) {
	body := `{"right": {"istmo_position_norm": 0.4, "volume_total_mm3": 900, "s_norm": [0, 1], "a_norm": [1, 0.5]},
	          "left": {"istmo_position_norm": 0.6, "volume_total_mm3": 950, "s_norm": "oops", "a_norm": [1]},
	          "comparison": {"istmo_shift_mm": 1.5}}`
	f := newFixture(t, http.StatusOK, body)

	if err := f.session.Analyze(context.Background(), meshUpload("r.stl"), meshUpload("l.stl")); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	last := f.status.Last()
	if !strings.HasPrefix(last, StatusDone) || !strings.Contains(last, "profile chart") || !strings.Contains(last, "s_norm") {
		t.Errorf("status failed: expected done with profile note, got %q", last)
	}
	if len(f.tables.tables) != 3 {
		t.Fatalf("tables failed: expected 3, got %d", len(f.tables.tables))
	}
	if got := f.tables.tables[TableLeft][0].Value; got != "950.0 mm³ (0.950 cm³)" {
		t.Errorf("left table failed: expected 950.0 mm³ (0.950 cm³), got %q", got)
	}
	if h := f.charts.Current(chart.SlotComparison); h == nil || h.Kind != chart.KindComparison {
		t.Errorf("comparison chart must render despite a malformed profile")
	}
	if h := f.charts.Current(chart.SlotProfile); h == nil || h.Kind != chart.KindPlaceholder {
		t.Errorf("profile slot failed: expected placeholder, got %v", h)
	}
}

func TestAnalyzeSupersededRunIsDiscarded(t *testing.T) {
	oldResponse := strings.Replace(analysisResponse, `"istmo_position_norm": 0.45`, `"istmo_position_norm": 0.99`, 1)

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"old run fails", http.StatusInternalServerError, `{"error": "stale failure"}`},
		{"old run succeeds", http.StatusOK, oldResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arrived := make(chan struct{})
			release := make(chan struct{})
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, header, err := r.FormFile("right")
				if err == nil && header.Filename == "old.stl" {
					close(arrived)
					<-release
					w.WriteHeader(tt.status)
					_, _ = io.WriteString(w, tt.body)
					return
				}
				_, _ = io.WriteString(w, analysisResponse)
			}))
			defer server.Close()
			f := newFixtureWithServer(server)

			oldDone := make(chan error, 1)
			go func() {
				oldDone <- f.session.Analyze(context.Background(), meshUpload("old.stl"), meshUpload("old.stl"))
			}()
			<-arrived

			if err := f.session.Analyze(context.Background(), meshUpload("new.stl"), meshUpload("new.stl")); err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			close(release)
			<-oldDone

			if f.status.Last() != StatusDone {
				t.Errorf("status failed: expected %q, got %q", StatusDone, f.status.Last())
			}
			if len(f.tables.tables) != 3 {
				t.Errorf("tables failed: expected 3, got %d", len(f.tables.tables))
			}
			if h := f.charts.Current(chart.SlotComparison); h == nil || h.Values[1] != 0.45 {
				t.Errorf("comparison chart failed: expected the newer run's data, got %v", h)
			}
			if v, _ := f.session.Result().Left.Float(ComparisonField); v != 0.45 {
				t.Errorf("Result failed: expected 0.45, got %v", v)
			}
			if f.session.Phase() != Idle {
				t.Errorf("Phase failed: expected idle, got %v", f.session.Phase())
			}
		})
	}
}

func TestAnalyzeErrorReportsPreviewFailure(t *testing.T) {
	f := newFixture(t, http.StatusBadRequest, `{"error": "Right file is not a mesh"}`)

	broken := &Upload{Name: "right.stl", Data: []byte("garbage")}
	if err := f.session.Analyze(context.Background(), broken, meshUpload("left.stl")); err == nil {
		t.Fatalf("expected request error")
	}

	last := f.status.Last()
	if !strings.HasPrefix(last, "Right file is not a mesh") || !strings.Contains(last, "right preview") {
		t.Errorf("status failed: expected server message with preview note, got %q", last)
	}
}

func TestAnalyzeAwaitingResponsePhase(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = io.WriteString(w, analysisResponse)
	}))
	defer server.Close()
	f := newFixtureWithServer(server)

	done := make(chan error, 1)
	go func() {
		done <- f.session.Analyze(context.Background(), meshUpload("r.stl"), meshUpload("l.stl"))
	}()

	waitFor(t, "awaiting response", func() bool { return f.session.Phase() == AwaitingResponse })
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if f.session.Phase() != Idle {
		t.Errorf("Phase failed: expected idle, got %v", f.session.Phase())
	}
}

// gatedPreview blocks every load until release is closed
type gatedPreview struct {
	release chan struct{}
}

func (p *gatedPreview) LoadMesh(ctx context.Context, data []byte) error {
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestAnalyzePreviewingMeshesPhase(t *testing.T) {
	f := newFixture(t, http.StatusOK, analysisResponse)
	gate := &gatedPreview{release: make(chan struct{})}
	f.session.right = gate
	f.session.left = gate

	done := make(chan error, 1)
	go func() {
		done <- f.session.Analyze(context.Background(), meshUpload("r.stl"), meshUpload("l.stl"))
	}()

	waitFor(t, "previewing meshes", func() bool { return f.session.Phase() == PreviewingMeshes })
	if n := f.session.PreviewsPending(); n != 2 {
		t.Errorf("PreviewsPending failed: expected 2, got %d", n)
	}
	if len(f.tables.tables) != 0 {
		t.Errorf("tables must not render before previews settle")
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if f.session.PreviewsPending() != 0 {
		t.Errorf("PreviewsPending failed: expected 0, got %d", f.session.PreviewsPending())
	}
	if f.status.Last() != StatusDone {
		t.Errorf("status failed: expected %q, got %q", StatusDone, f.status.Last())
	}
}
