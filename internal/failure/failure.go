// Package failure defines the error taxonomy of the separation pipeline.
//
// Every error that settles a job carries a Kind. Components return errors
// built with the constructors below; the job controller annotates them with
// the job id and stage (Wrap) before they reach the status store or the
// HTTP layer, which switch on KindOf rather than on message text.
package failure

import (
	"context"
	"errors"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	// KindConfiguration: missing credentials or invalid settings. Not retried.
	KindConfiguration Kind = "configuration"
	// KindResourceLoad: model or checkpoint could not be loaded.
	KindResourceLoad Kind = "resource_load"
	// KindDeviceMemory: allocation failure on the device during inference.
	KindDeviceMemory Kind = "device_memory"
	// KindInput: corrupt, unreadable or unsupported input audio.
	KindInput Kind = "input"
	// KindPartialWrite: an output artifact could not be written.
	KindPartialWrite Kind = "partial_write"
	KindCancelled    Kind = "cancelled"
	KindTimeout      Kind = "timeout"
	KindInternal     Kind = "internal"
)

// Error is a classified failure with optional job context.
type Error struct {
	Kind  Kind
	JobID string
	Stage string
	// Path is the offending file for input and write failures.
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.JobID != "" {
		b.WriteString("job ")
		b.WriteString(e.JobID)
		b.WriteString(": ")
	}
	if e.Stage != "" {
		b.WriteString(e.Stage)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New constructs a classified error.
func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Configuration reports missing credentials or invalid settings.
func Configuration(msg string) *Error { return New(KindConfiguration, msg, nil) }

// ResourceLoad reports a model that could not be loaded.
func ResourceLoad(model string, err error) *Error {
	return &Error{Kind: KindResourceLoad, Msg: "load " + model, Err: err}
}

// DeviceMemory reports an allocation failure on the device.
func DeviceMemory(err error) *Error {
	return &Error{Kind: KindDeviceMemory, Msg: "out of device memory", Err: err}
}

// Input reports an unreadable input file.
func Input(path, msg string, err error) *Error {
	return &Error{Kind: KindInput, Path: path, Msg: msg, Err: err}
}

// PartialWrite reports an artifact write failure.
func PartialWrite(path string, err error) *Error {
	return &Error{Kind: KindPartialWrite, Path: path, Msg: "write artifact", Err: err}
}

// KindOf returns the kind of err. Context cancellation and deadlines are
// classified even when they were never wrapped. Unclassified errors are
// internal. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindInternal
}

// Wrap annotates err with the job id and stage it failed in. An already
// classified error keeps its kind; anything else is classified by KindOf.
func Wrap(err error, jobID, stage string) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		out := *fe
		if out.JobID == "" {
			out.JobID = jobID
		}
		if out.Stage == "" {
			out.Stage = stage
		}
		return &out
	}
	return &Error{Kind: KindOf(err), JobID: jobID, Stage: stage, Err: err}
}

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// IsResourceLoad reports whether err is a model load failure.
func IsResourceLoad(err error) bool { return KindOf(err) == KindResourceLoad }

// IsDeviceMemory reports whether err is a device allocation failure.
func IsDeviceMemory(err error) bool { return KindOf(err) == KindDeviceMemory }

// IsInput reports whether err is an input failure.
func IsInput(err error) bool { return KindOf(err) == KindInput }

// IsPartialWrite reports whether err is an artifact write failure.
func IsPartialWrite(err error) bool { return KindOf(err) == KindPartialWrite }

// IsCancelled reports whether err comes from a cancellation.
func IsCancelled(err error) bool { return KindOf(err) == KindCancelled }
