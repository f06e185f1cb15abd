package protocol

import "fmt"

// ServerErrorCode identifies a server-side failure and carries its message
// template.
type ServerErrorCode struct {
	name   string
	format string
}

func (c ServerErrorCode) String() string { return c.name }

var (
	InvalidContextID = ServerErrorCode{"INVALID_CONTEXT_ID", "Cannot find a context with the id '%s'"}
	UnknownService   = ServerErrorCode{"UNKNOWN_SERVICE", "Unknown analysis service '%s'"}
	EngineNotStarted = ServerErrorCode{"ENGINE_NOT_STARTED", "The analysis engine has not been started"}
)

// ServerError is a failure of the analysis engine itself, as opposed to a
// problem in the analyzed source.
type ServerError struct {
	Code ServerErrorCode
	Args []any
}

func NewServerError(code ServerErrorCode, args ...any) *ServerError {
	return &ServerError{Code: code, Args: args}
}

// Message formats the code's template with the error's arguments.
func (e *ServerError) Message() string {
	if len(e.Args) == 0 {
		return e.Code.format
	}
	return fmt.Sprintf(e.Code.format, e.Args...)
}

func (e *ServerError) Error() string { return e.Message() }

// String renders the error as "[code=..., message=...]".
func (e *ServerError) String() string {
	return fmt.Sprintf("[code=%s, message=%s]", e.Code, e.Message())
}
