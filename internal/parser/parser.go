package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format names a supported tabular input format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options tunes parsing. The zero value parses comma-delimited text.
type Options struct {
	// Delimiter for delimited text. If 0, ',' is used.
	Delimiter rune
}

// DefaultOptions returns the options used by uploads.
func DefaultOptions() Options {
	return Options{Delimiter: ','}
}

func (o Options) delimiter() string {
	if o.Delimiter == 0 {
		return ","
	}
	return string(o.Delimiter)
}

// Result is the parsed content of one tabular file.
type Result struct {
	Records []Record
	// Columns lists field names in header order (CSV) or first-object order (JSON).
	Columns []string
	// Warnings carries non-fatal diagnostics, e.g. JSON that decoded to nothing.
	Warnings []string
}

// Parser defines a tabular format implementation.
type Parser interface {
	Format() Format
	CanParse(filename, contentType string) bool
	Parse(content []byte, opt Options) (*Result, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

// ErrUnsupported indicates a format is not supported.
var ErrUnsupported = errors.New("unsupported file type")

// ParseError reports an input that cannot be turned into records.
type ParseError struct {
	File string
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ForFormat returns the registered parser for f.
func ForFormat(f Format) (Parser, error) {
	for _, p := range registry {
		if p.Format() == f {
			return p, nil
		}
	}
	return nil, &ParseError{Msg: "Unsupported file type. Please upload a CSV or JSON file.", Err: ErrUnsupported}
}

// DetectFormat selects a format from a file name or MIME type.
func DetectFormat(filename, contentType string) (Format, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, p := range registry {
		if p.CanParse(filename, ct) {
			return p.Format(), nil
		}
	}
	return "", &ParseError{File: filename, Msg: "Unsupported file type. Please upload a CSV or JSON file.", Err: ErrUnsupported}
}

// Parse decodes content in the given format.
func Parse(content []byte, f Format, opt Options) (*Result, error) {
	if len(content) == 0 {
		return nil, &ParseError{Msg: "File is empty."}
	}
	p, err := ForFormat(f)
	if err != nil {
		return nil, err
	}
	res, err := p.Parse(content, opt)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &ParseError{Msg: "Failed to parse file", Err: err}
	}
	return res, nil
}

// ParseUpload decompresses (if needed), detects the format, and parses.
// name and contentType are hints only; content is never written anywhere.
func ParseUpload(name, contentType string, content []byte, opt Options) (*Result, error) {
	if len(content) == 0 {
		return nil, &ParseError{File: name, Msg: "File is empty."}
	}
	inner, body, compressed, err := decompress(name, content)
	if err != nil {
		return nil, &ParseError{File: name, Msg: "Failed to decompress file", Err: err}
	}
	if compressed {
		// the outer MIME type describes the archive, not the table
		contentType = ""
	}
	f, err := DetectFormat(inner, contentType)
	if err != nil {
		return nil, err
	}
	res, err := Parse(body, f, opt)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.File == "" {
			pe.File = name
		}
		return nil, err
	}
	return res, nil
}

// ParseFile reads a file from disk and parses it according to its name.
func ParseFile(path string, opt Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseUpload(filepath.Base(path), "", data, opt)
}

func init() {
	Register(csvParser{})
	Register(jsonParser{})
}
