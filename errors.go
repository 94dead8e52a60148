package sodabuild

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soda-gql/sodabuild/internal/canonical"
)

// ErrorCode classifies build failures for programmatic handling.
type ErrorCode string

const (
	CodeConfig  ErrorCode = "CONFIG"
	CodeResolve ErrorCode = "RESOLVE"
	CodeParse   ErrorCode = "PARSE"
	CodeGraph   ErrorCode = "GRAPH"
	CodeEval    ErrorCode = "EVAL"
	CodePersist ErrorCode = "PERSIST"
)

// BuildError is the session's failure type. It carries the pipeline
// stage and, when known, the file or definition the failure belongs to.
type BuildError struct {
	Code     ErrorCode
	Stage    string
	FilePath string
	ID       canonical.ID
	Err      error
}

func (e *BuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sodabuild: %s", e.Stage)
	if e.FilePath != "" {
		fmt.Fprintf(&b, " (%s)", e.FilePath)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " (%s)", e.ID)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *BuildError) Unwrap() error { return e.Err }

// buildErr wraps err with stage context.
func buildErr(code ErrorCode, stage string, err error) *BuildError {
	return &BuildError{Code: code, Stage: stage, Err: err}
}

// ErrDependencyCycle marks evaluation reaching a definition that
// participates in a reference cycle. Cycles are detected structurally
// before evaluation starts; every member of the cycle fails with an
// error wrapping this sentinel.
var ErrDependencyCycle = errors.New("sodabuild: dependency cycle")

// CycleError names the members of one detected cycle, in a
// deterministic order starting from the lexically smallest ID.
type CycleError struct {
	Members []canonical.ID
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Members))
	for i, id := range e.Members {
		parts[i] = string(id)
	}
	return fmt.Sprintf("sodabuild: dependency cycle: %s", strings.Join(parts, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrDependencyCycle }
