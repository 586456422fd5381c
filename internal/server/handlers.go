package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/correlate-cli/internal/align"
	"github.com/KaramelBytes/correlate-cli/internal/analysis"
	"github.com/KaramelBytes/correlate-cli/internal/parser"
	"github.com/KaramelBytes/correlate-cli/internal/stats"
)

// errBadForm reports a request whose form fields are incomplete.
type errBadForm struct{ msg string }

func (e *errBadForm) Error() string { return e.msg }

func (s *Server) handleAnalyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes)

	var method stats.Method
	if m := strings.TrimSpace(c.PostForm("method")); m != "" {
		var err error
		if method, err = stats.ParseMethod(m); err != nil {
			s.fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	d1, err := s.dataset(c, "1")
	if err != nil {
		s.failErr(c, err)
		return
	}
	d2, err := s.dataset(c, "2")
	if err != nil {
		s.failErr(c, err)
		return
	}

	ctx := c.Request.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.analyzer.Run(ctx, analysis.Request{Dataset1: d1, Dataset2: d2, Method: method})
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleColumns(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		s.failErr(c, formFileErr(err, "A file is required."))
		return
	}
	res, err := parseUpload(fh)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": res.Columns, "records": len(res.Records)})
}

// dataset reads file<n>, timeField<n>, valueField<n> and name<n>.
func (s *Server) dataset(c *gin.Context, n string) (align.Dataset, error) {
	fh, err := c.FormFile("file" + n)
	if err != nil {
		return align.Dataset{}, formFileErr(err, "Both files are required.")
	}
	timeField := strings.TrimSpace(c.PostForm("timeField" + n))
	valueField := strings.TrimSpace(c.PostForm("valueField" + n))
	if timeField == "" || valueField == "" {
		return align.Dataset{}, &errBadForm{msg: fmt.Sprintf("timeField%s and valueField%s are required.", n, n)}
	}
	res, err := parseUpload(fh)
	if err != nil {
		return align.Dataset{}, err
	}
	name := strings.TrimSpace(c.PostForm("name" + n))
	if name == "" {
		name = fh.Filename
	}
	return align.Dataset{Name: name, Records: res.Records, TimeField: timeField, ValueField: valueField}, nil
}

func parseUpload(fh *multipart.FileHeader) (*parser.Result, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return parser.ParseUpload(fh.Filename, fh.Header.Get("Content-Type"), data, parser.DefaultOptions())
}

func formFileErr(err error, missing string) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return tooBig
	}
	return &errBadForm{msg: missing}
}

// statusFor maps the analysis error taxonomy to an HTTP status.
func statusFor(err error) int {
	var (
		bad    *errBadForm
		tooBig *http.MaxBytesError
		pe     *parser.ParseError
		mf     *parser.MissingFieldError
		ide    *analysis.InsufficientDataError
		ce     *analysis.CollaboratorError
	)
	switch {
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &bad), errors.As(err, &pe), errors.As(err, &mf), errors.Is(err, analysis.ErrEmptyDataset):
		return http.StatusBadRequest
	case errors.As(err, &ide), errors.Is(err, analysis.ErrUndefinedCorrelation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ce):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) failErr(c *gin.Context, err error) {
	status := statusFor(err)
	msg := analysis.UserMessage(err)
	var (
		bad    *errBadForm
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &bad):
		msg = bad.msg
	case errors.As(err, &tooBig):
		msg = fmt.Sprintf("Upload exceeds the %d MB limit.", tooBig.Limit>>20)
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "route", c.FullPath(), "status", status, "err", err)
	}
	s.fail(c, status, msg)
}

func (s *Server) fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
