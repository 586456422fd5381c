package parser_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/correlate-cli/internal/parser"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestParseJSON_ArrayOfObjects(t *testing.T) {
	content := `[{"t":"2024-01-01","v":10,"ok":true,"note":null,"tags":["a"]},{"t":"2024-01-02","v":"20"}]`
	res, err := parser.Parse([]byte(content), parser.FormatJSON, parser.DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	r := res.Records[0]
	if r["v"] != parser.Number(10) || r["ok"] != parser.Bool(true) || !r["note"].IsNull() {
		t.Fatalf("unexpected scalar mapping: %+v", r)
	}
	if r["tags"] != parser.String(`["a"]`) {
		t.Fatalf("nested values should be compact JSON text, got %+v", r["tags"])
	}
	if res.Records[1]["v"] != parser.String("20") {
		t.Fatalf("string values must stay strings, got %+v", res.Records[1]["v"])
	}
	want := []string{"t", "v", "ok", "note", "tags"}
	if len(res.Columns) != len(want) {
		t.Fatalf("columns: %v", res.Columns)
	}
	for i := range want {
		if res.Columns[i] != want[i] {
			t.Fatalf("columns should keep document order, got %v", res.Columns)
		}
	}
}

func TestParseJSON_InvalidShapesYieldZeroRecords(t *testing.T) {
	inputs := []string{
		`{"t":"2024-01-01"}`,
		`[{"t":1}, null]`,
		`[{"t":1}, 3]`,
		`[{"t":1}`,
		`not json`,
		`[]`,
	}
	for _, in := range inputs {
		res, err := parser.Parse([]byte(in), parser.FormatJSON, parser.DefaultOptions())
		if err != nil {
			t.Fatalf("%q: structured input must not fail, got %v", in, err)
		}
		if len(res.Records) != 0 {
			t.Fatalf("%q: expected zero records, got %d", in, len(res.Records))
		}
	}
}

func TestParseUpload_EmptyAndUnsupported(t *testing.T) {
	_, err := parser.ParseUpload("a.csv", "", nil, parser.DefaultOptions())
	var pe *parser.ParseError
	if !errors.As(err, &pe) || pe.Msg != "File is empty." {
		t.Fatalf("expected empty-file ParseError, got %v", err)
	}
	_, err = parser.ParseUpload("a.xlsx", "", []byte("x"), parser.DefaultOptions())
	if !errors.Is(err, parser.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestParseUpload_ContentTypeHint(t *testing.T) {
	res, err := parser.ParseUpload("blob", "application/json; charset=utf-8", []byte(`[{"a":1}]`), parser.DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
}

func TestParseUpload_Compressed(t *testing.T) {
	csv := []byte("t,v\n2024-01-01,1\n2024-01-02,2\n")

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(csv); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	res, err := parser.ParseUpload("data.csv.gz", "application/gzip", gz.Bytes(), parser.DefaultOptions())
	if err != nil {
		t.Fatalf("parse gzip: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("gzip: expected 2 records, got %d", len(res.Records))
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	packed := enc.EncodeAll(csv, nil)
	_ = enc.Close()
	res, err = parser.ParseUpload("data.csv.zst", "", packed, parser.DefaultOptions())
	if err != nil {
		t.Fatalf("parse zstd: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("zstd: expected 2 records, got %d", len(res.Records))
	}

	_, err = parser.ParseUpload("broken.csv.gz", "", []byte("not gzip"), parser.DefaultOptions())
	var pe *parser.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for corrupt archive, got %v", err)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "pollen.csv")
	if err := os.WriteFile(p, []byte("date,count\n2024-04-01,120\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := parser.ParseFile(p, parser.DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0]["count"] != parser.Number(120) {
		t.Fatalf("unexpected result: %+v", res.Records)
	}
	if _, err := parser.ParseFile(filepath.Join(dir, "missing.csv"), parser.DefaultOptions()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestRecordLookup(t *testing.T) {
	rec := parser.Record{"a": parser.Number(1)}
	if v, err := rec.Lookup("a"); err != nil || v != parser.Number(1) {
		t.Fatalf("lookup a: %v %v", v, err)
	}
	_, err := rec.Lookup("b")
	var mf *parser.MissingFieldError
	if !errors.As(err, &mf) || mf.Field != "b" {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
}
