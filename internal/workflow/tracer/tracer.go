// Package tracer provides a lightweight tracing abstraction for the
// workflow module.
//
// It defines a small internal tracer interface so the workflow code can
// emit distributed traces without depending on OpenTelemetry APIs
// throughout the codebase.
//
// Implementations:
//   - NoopTracer: for tests (zero overhead)
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans for distributed tracing.
// Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	// The returned context contains the new span and should be passed
	// to child operations. The span must be ended via Span.End.
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names used by the workflow module.
const (
	SpanRegisterIdentity   = "workflow.identity.register"
	SpanUpdateRole         = "workflow.identity.role"
	SpanVerifyInstitution  = "workflow.institution.verify"
	SpanUpdateProfile      = "workflow.profile.update"
	SpanCreateExam         = "workflow.exam.create"
	SpanTransitionExam     = "workflow.exam.transition"
	SpanEnrollStudents     = "workflow.exam.enroll"
	SpanSubmitResult       = "workflow.result.submit"
	SpanIssueCertificate   = "workflow.certificate.issue"
	SpanRevokeCertificate  = "workflow.certificate.revoke"
	SpanVerifyCertificate  = "workflow.certificate.verify"
	SpanExamDetail         = "workflow.exam.detail"
	SpanStudentTranscript  = "workflow.transcript"
	SpanContentUpload      = "workflow.content.upload"
	SpanLedgerConfirmation = "workflow.ledger.confirm"
)

// Attribute keys used by the workflow module.
const (
	AttrCaller      = "caller.address"
	AttrCallerRole  = "caller.role"
	AttrExamID      = "exam.id"
	AttrStudent     = "student.address"
	AttrContentRef  = "content.ref"
	AttrAttempts    = "confirm.attempts"
	AttrOutcome     = "outcome"
	AttrCertificate = "certificate.id"
)

// Event names used by the workflow module.
const (
	EventContentStored  = "content.stored"
	EventOrphanedUpload = "content.orphaned"
)
