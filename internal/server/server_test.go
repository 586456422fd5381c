package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/correlate-cli/internal/ai"
	"github.com/KaramelBytes/correlate-cli/internal/analysis"
	"github.com/KaramelBytes/correlate-cli/internal/metrics"
)

func init() { gin.SetMode(gin.TestMode) }

const pollenCSV = "date,count\n2024-03-01,10\n2024-03-02,20\n2024-03-03,30\n2024-03-04,40\n"

const sneezeJSON = `[
 {"ts": "2024-03-01T08:00:00Z", "n": 2},
 {"ts": "2024-03-01T20:00:00Z", "n": 4},
 {"ts": "2024-03-02T09:00:00Z", "n": 5},
 {"ts": "2024-03-03T09:00:00Z", "n": 9},
 {"ts": "2024-03-04T09:00:00Z", "n": 12}
]`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(Options{
		Analyzer: &analysis.Analyzer{Suggester: ai.Offline{}, Summarizer: ai.Offline{}},
		Metrics:  metrics.New(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

type upload struct {
	field, name, body string
}

func multipartRequest(t *testing.T, path string, files []upload, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(fw, f.body); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func analyzeFields() map[string]string {
	return map[string]string{
		"timeField1": "date", "valueField1": "count",
		"timeField2": "ts", "valueField2": "n",
		"name2": "sneezes",
	}
}

func TestAnalyzeOK(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, "/api/analyze", []upload{
		{"file1", "pollen.csv", pollenCSV},
		{"file2", "sneezes.json", sneezeJSON},
	}, analyzeFields())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var res analysis.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Aligned) != 4 || res.Aligned[0].Value2 != 3 {
		t.Fatalf("unexpected aligned series %+v", res.Aligned)
	}
	if res.Dataset1Name != "pollen.csv" || res.Dataset2Name != "sneezes" {
		t.Fatalf("unexpected names %q %q", res.Dataset1Name, res.Dataset2Name)
	}
	if res.Correlation.Coefficient < 0.9 || res.Summary == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	mrec := httptest.NewRecorder()
	s.Handler().ServeHTTP(mrec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := mrec.Body.String()
	if !strings.Contains(body, `correlate_analyses_total{method="pearson",outcome="ok"} 1`) {
		t.Fatalf("analysis not counted:\n%s", body)
	}
	if !strings.Contains(body, `http_requests_total{route="/api/analyze",status="200"} 1`) {
		t.Fatalf("request not counted:\n%s", body)
	}
}

func TestAnalyzeErrorMapping(t *testing.T) {
	tooShort := "date,count\n2024-03-01,1\n2024-03-02,2\n"
	flat := "date,count\n2024-03-01,5\n2024-03-02,5\n2024-03-03,5\n2024-03-04,5\n"
	cases := []struct {
		name   string
		files  []upload
		edit   func(map[string]string)
		status int
		msg    string
	}{
		{
			name:   "unsupported type",
			files:  []upload{{"file1", "pollen.txt", pollenCSV}, {"file2", "sneezes.json", sneezeJSON}},
			status: http.StatusBadRequest,
			msg:    "Unsupported file type",
		},
		{
			name:   "missing field",
			files:  []upload{{"file1", "pollen.csv", pollenCSV}, {"file2", "sneezes.json", sneezeJSON}},
			edit:   func(f map[string]string) { f["valueField1"] = "grams" },
			status: http.StatusBadRequest,
			msg:    `"grams"`,
		},
		{
			name:   "empty dataset",
			files:  []upload{{"file1", "pollen.csv", "date,count\n"}, {"file2", "sneezes.json", sneezeJSON}},
			status: http.StatusBadRequest,
			msg:    "File is empty or could not be parsed.",
		},
		{
			name:   "insufficient data",
			files:  []upload{{"file1", "pollen.csv", tooShort}, {"file2", "sneezes.json", sneezeJSON}},
			status: http.StatusUnprocessableEntity,
			msg:    "Not enough overlapping data points",
		},
		{
			name:   "undefined correlation",
			files:  []upload{{"file1", "pollen.csv", flat}, {"file2", "sneezes.json", sneezeJSON}},
			status: http.StatusUnprocessableEntity,
			msg:    "lack of variation",
		},
		{
			name:   "missing file",
			files:  []upload{{"file1", "pollen.csv", pollenCSV}},
			status: http.StatusBadRequest,
			msg:    "Both files are required.",
		},
		{
			name:   "missing fields",
			files:  []upload{{"file1", "pollen.csv", pollenCSV}, {"file2", "sneezes.json", sneezeJSON}},
			edit:   func(f map[string]string) { delete(f, "timeField2") },
			status: http.StatusBadRequest,
			msg:    "timeField2 and valueField2 are required.",
		},
		{
			name:   "bad method",
			files:  []upload{{"file1", "pollen.csv", pollenCSV}, {"file2", "sneezes.json", sneezeJSON}},
			edit:   func(f map[string]string) { f["method"] = "kendall" },
			status: http.StatusBadRequest,
			msg:    "unknown correlation method",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			fields := analyzeFields()
			if tc.edit != nil {
				tc.edit(fields)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, multipartRequest(t, "/api/analyze", tc.files, fields))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !strings.Contains(body["error"], tc.msg) {
				t.Fatalf("error = %q, want it to contain %q", body["error"], tc.msg)
			}
		})
	}
}

type failingSuggester struct{}

func (failingSuggester) Suggest(_ context.Context, _ ai.MethodRequest) (*ai.MethodSuggestion, error) {
	return nil, &ai.RateLimitError{APIError: &ai.APIError{StatusCode: 429}}
}

func TestAnalyzeCollaboratorFailureIs502(t *testing.T) {
	s := New(Options{
		Analyzer: &analysis.Analyzer{Suggester: failingSuggester{}},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartRequest(t, "/api/analyze", []upload{
		{"file1", "pollen.csv", pollenCSV},
		{"file2", "sneezes.json", sneezeJSON},
	}, analyzeFields()))
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "rate limiting") {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAnalyzeMethodOverride(t *testing.T) {
	s := newTestServer(t)
	fields := analyzeFields()
	fields["method"] = "Spearman"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartRequest(t, "/api/analyze", []upload{
		{"file1", "pollen.csv", pollenCSV},
		{"file2", "sneezes.json", sneezeJSON},
	}, fields))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var res analysis.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Correlation.Method != "spearman" || res.Correlation.Coefficient != 1 {
		t.Fatalf("unexpected correlation %+v", res.Correlation)
	}
}

func TestColumns(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartRequest(t, "/api/columns", []upload{{"file", "sneezes.json", sneezeJSON}}, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Columns []string `json:"columns"`
		Records int      `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Join(body.Columns, ",") != "ts,n" || body.Records != 5 {
		t.Fatalf("unexpected columns response %+v", body)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartRequest(t, "/api/columns", nil, map[string]string{"x": "y"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file should be 400, got %d", rec.Code)
	}
}

func TestUploadLimit(t *testing.T) {
	s := New(Options{MaxUploadMB: 1, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	big := "date,count\n" + strings.Repeat("2024-03-01,1\n", 200_000)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartRequest(t, "/api/columns", []upload{{"file", "big.csv", big}}, nil))
	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized upload accepted: %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}
