package parser

import (
	"math"
	"strconv"
	"strings"
)

type csvParser struct{}

func (csvParser) Format() Format { return FormatCSV }

func (csvParser) CanParse(filename, contentType string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".csv") || contentType == "text/csv"
}

// Parse splits delimited text into records. The first line is the header.
// Quoted fields are not supported: a delimiter inside quotes still splits.
func (csvParser) Parse(content []byte, opt Options) (*Result, error) {
	text := strings.TrimPrefix(string(content), "\ufeff")
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return &Result{}, nil
	}
	delim := opt.delimiter()

	headers := strings.Split(lines[0], delim)
	columns := make([]string, 0, len(headers))
	seen := make(map[string]bool, len(headers))
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
		if !seen[headers[i]] {
			seen[headers[i]] = true
			columns = append(columns, headers[i])
		}
	}

	res := &Result{Columns: columns, Records: make([]Record, 0, len(lines)-1)}
	for _, line := range lines[1:] {
		cells := strings.Split(line, delim)
		rec := make(Record, len(columns))
		for i, h := range headers {
			cell := ""
			if i < len(cells) {
				cell = strings.TrimSpace(cells[i])
			}
			rec[h] = inferCell(cell)
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// inferCell stores a cell as a Number when the whole trimmed text is numeric.
func inferCell(s string) Value {
	if f, ok := numericCell(s); ok {
		return Number(f)
	}
	return String(s)
}

func numericCell(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			u, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(u), true
		}
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.ContainsAny(lower, "x_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f, true
		}
		return 0, false
	}
	return f, true
}
