package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"citebroker/internal/item"
	"citebroker/internal/messages"
)

// Severity grades a failed call. Warnings are transient and retried.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ParseSeverity maps a remote level onto a Severity. Unknown levels are errors.
func ParseSeverity(level string) Severity {
	switch Severity(level) {
	case SeverityFatal, SeverityWarning:
		return Severity(level)
	default:
		return SeverityError
	}
}

// Code identifies why a call failed. Each has a "service_<code>" message.
type Code string

const (
	CodeBufferOverflow    Code = "buffer_overflow"
	CodeWrongResponse     Code = "wrong_response"
	CodeUnknownItem       Code = "unknown_item"
	CodeBadRequest        Code = "bad_request"
	CodeServerErrorFatal  Code = "server_error_fatal"
	CodeBadJSON           Code = "bad_json"
	CodeConnectionRefused Code = "connection_refused"
	CodeTimeout           Code = "timeout"
	CodeServerError       Code = "server_error"
	CodeNoTargetDefined   Code = "no_target_defined"
	CodeRemoteError       Code = "remote_error"
)

// MessageKey is the message template key for c.
func (c Code) MessageKey() string {
	return "service_" + string(c)
}

// Failure is a classified, contained service error.
type Failure struct {
	Severity Severity
	Code     Code
	Message  string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Severity, f.Message)
}

// Outcome is the single result of invoking a service: either Items or a Failure.
type Outcome struct {
	Service     string
	Items       []*item.Item
	Failure     *Failure
	Transaction item.Transaction
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool { return o.Failure == nil }

// Status is "success" or "<severity>:<code>".
func (o Outcome) Status() string {
	if o.Failure == nil {
		return "success"
	}
	return string(o.Failure.Severity) + ":" + string(o.Failure.Code)
}

// Failed builds a failure outcome for name without calling anything, for
// callers that give up on a service themselves.
func Failed(name string, sev Severity, code Code, msgs messages.Catalog) Outcome {
	out := Outcome{
		Service: name,
		Failure: &Failure{Severity: sev, Code: code, Message: msgs.Build(code.MessageKey(), name)},
	}
	out.Transaction = item.Transaction{
		ID:      uuid.NewString(),
		Service: name,
		Status:  out.Status(),
		Started: time.Now(),
	}
	return out
}
