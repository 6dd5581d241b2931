// Package logging builds the root glog logger. Rich errors passed under
// the "error" key are expanded into their code, category and metadata.
package logging

import (
	"io"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

const (
	FormatPretty = glog.LoggerTypePretty
	FormatText   = "text"
	FormatJSON   = glog.LoggerTypeJSON
)

// New returns the root logger writing to w. level is one of trace, debug,
// info, warn or error. format is pretty, text or json.
func New(w io.Writer, level, format, name string) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithWriter(w),
		glog.WithLoggerType(format),
		glog.WithLevel(level),
		glog.WithName(name),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}

// Discard returns a logger that drops every record
func Discard() *glog.BaseLogger {
	return New(io.Discard, glog.Error, FormatJSON, "")
}
