package pipeline

import "fmt"

// Kind classifies a pipeline failure by the stage that raised it.
type Kind string

const (
	KindConfig   Kind = "config"
	KindSource   Kind = "source"
	KindFetch    Kind = "fetch"
	KindRender   Kind = "render"
	KindPublish  Kind = "publish"
	KindInternal Kind = "internal"
)

// Error is a stage-attributed pipeline failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds a leaf failure with a formatted message.
func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// stageError attributes an underlying error to a stage, keeping its
// message verbatim.
func stageError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
