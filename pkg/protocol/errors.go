package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dukex/lakeflow/pkg/models"
)

// TaskError is a classified failure of an external operation.
type TaskError struct {
	Kind models.ErrorKind
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func NewTaskError(kind models.ErrorKind, err error) *TaskError {
	return &TaskError{Kind: kind, Err: err}
}

func Transient(err error) *TaskError {
	return NewTaskError(models.ErrorKindTransientService, err)
}

func ResourceExhausted(err error) *TaskError {
	return NewTaskError(models.ErrorKindResourceExhausted, err)
}

func ClientTimeout(err error) *TaskError {
	return NewTaskError(models.ErrorKindClientTimeout, err)
}

func ConnectorServerError(err error) *TaskError {
	return NewTaskError(models.ErrorKindConnectorServerError, err)
}

func DomainInvalid(err error) *TaskError {
	return NewTaskError(models.ErrorKindDomainInvalid, err)
}

// Classify returns the TaskError carried by err. Unclassified errors are
// domain-invalid, except deadline and network timeouts which are
// client-timeout.
func Classify(err error) *TaskError {
	if err == nil {
		return nil
	}

	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClientTimeout(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClientTimeout(err)
	}

	return DomainInvalid(err)
}
