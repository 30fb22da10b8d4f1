package chunkparse

import (
	"fmt"
	"log"
	"os"
)

// Logger defines an interface for writing log messages.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type defaultLogger struct{}

// DefaultLogger logs to the Go stdlib logs.
var DefaultLogger defaultLogger

var _ Logger = DefaultLogger

// Infof implements the Logger.Infof interface.
func (defaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Errorf implements the Logger.Errorf interface.
func (defaultLogger) Errorf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

type discardLogger struct{}

// DiscardLogger drops every message.
var DiscardLogger discardLogger

func (discardLogger) Infof(string, ...interface{})  {}
func (discardLogger) Errorf(string, ...interface{}) {}

// StderrLogger writes unprefixed lines to stderr, for the command line.
type StderrLogger struct{}

// Infof implements the Logger.Infof interface.
func (StderrLogger) Infof(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Errorf implements the Logger.Errorf interface.
func (StderrLogger) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// prefixLogger tags every line with a job id.
type prefixLogger struct {
	prefix string
	l      Logger
}

func (p prefixLogger) Infof(format string, args ...interface{}) {
	p.l.Infof("[%s] %s", p.prefix, fmt.Sprintf(format, args...))
}

func (p prefixLogger) Errorf(format string, args ...interface{}) {
	p.l.Errorf("[%s] %s", p.prefix, fmt.Sprintf(format, args...))
}
