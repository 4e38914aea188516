// Package errclass classifies arbitrary operation failures into a
// structured severity/category pair and tracks aggregate error counts.
//
// Classification is keyword matching over the error text and type name,
// not type-based dispatch: the upstream LLM and OCR providers surface
// failures as opaque errors whose message is the only reliable signal.
// The keyword tables are held as ordered data so behavior is reproducible.
package errclass

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Severity ranks how serious a failure is.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityRecoverable Severity = "recoverable"
	SeverityWarning     Severity = "warning"
	SeverityInfo        Severity = "info"
)

// Category groups failures by subsystem. Severity and category are
// independent: a single error can be critical severity and network
// category at once.
type Category string

const (
	CategoryNetwork       Category = "network"
	CategoryDependency    Category = "dependency"
	CategoryValidation    Category = "validation"
	CategoryResource      Category = "resource"
	CategoryProcessing    Category = "processing"
	CategoryConfiguration Category = "configuration"
	CategoryUnknown       Category = "unknown"
)

// RetryableErrors is the substring list shared by the retry manager and
// ShouldRetry. An error is worth retrying iff its text contains one of
// these, case-insensitively.
var RetryableErrors = []string{
	"timeout",
	"connection",
	"network",
	"temporary",
	"rate limit",
	"server error",
	"unavailable",
	"429",
	"500",
	"502",
	"503",
	"504",
}

// severityRules are checked in order; the first group with a keyword hit
// wins. Anything unmatched defaults to recoverable.
var severityRules = []struct {
	severity Severity
	keywords []string
}{
	{SeverityCritical, []string{
		"database", "connection pool", "out of memory", "disk full",
		"permission denied", "authentication failed", "security",
	}},
	{SeverityRecoverable, []string{
		"timeout", "connection", "network", "temporary", "rate limit",
		"server error", "service unavailable",
	}},
	{SeverityWarning, []string{
		"deprecated", "fallback", "degraded", "missing optional",
	}},
}

// categoryRules are scanned independently of severity. Anything unmatched
// defaults to unknown.
var categoryRules = []struct {
	category Category
	keywords []string
}{
	{CategoryNetwork, []string{"network", "connection", "timeout", "dns", "socket", "unreachable"}},
	{CategoryDependency, []string{"provider", "not found", "missing", "unavailable", "dependency"}},
	{CategoryValidation, []string{"validation", "invalid", "malformed", "schema", "parse"}},
	{CategoryResource, []string{"memory", "disk", "quota", "rate limit", "capacity"}},
	{CategoryProcessing, []string{"processing", "extraction", "grading", "ocr", "llm", "mapping"}},
	{CategoryConfiguration, []string{"config", "setting", "environment", "credential", "api key"}},
}

// ClassifySeverity is a pure function over the error text and type name.
func ClassifySeverity(message, typeName string) Severity {
	text := strings.ToLower(message + " " + typeName)
	for _, rule := range severityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.severity
			}
		}
	}
	return SeverityRecoverable
}

// ClassifyCategory is a pure function over the error text and type name.
func ClassifyCategory(message, typeName string) Category {
	text := strings.ToLower(message + " " + typeName)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return CategoryUnknown
}

// Classify derives both dimensions for an error.
func Classify(err error) (Severity, Category) {
	msg := errorText(err)
	name := typeName(err)
	return ClassifySeverity(msg, name), ClassifyCategory(msg, name)
}

// Retryable reports whether err's text contains a retryable substring.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(errorText(err))
	for _, kw := range RetryableErrors {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// errorText returns the error message, augmented with a hint when the
// error is a gRPC status: OCR failures arrive over gRPC and carry a
// status code rather than useful message text.
func errorText(err error) string {
	msg := err.Error()
	if hint := grpcHint(err); hint != "" {
		msg += " " + hint
	}
	return msg
}

func grpcHint(err error) string {
	s, ok := status.FromError(err)
	if !ok {
		return ""
	}
	switch s.Code() {
	case codes.Unavailable:
		return "service unavailable"
	case codes.DeadlineExceeded:
		return "timeout"
	case codes.ResourceExhausted:
		return "rate limit"
	case codes.InvalidArgument:
		return "invalid argument"
	case codes.PermissionDenied:
		return "permission denied"
	default:
		return ""
	}
}

// typeName returns the error's Go type with package path and pointer
// marker stripped, upper-cased for error codes.
func typeName(err error) string {
	name := fmt.Sprintf("%T", err)
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}
