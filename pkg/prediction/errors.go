package prediction

import (
	"errors"
	"fmt"
)

// UserMessage is the only message ever shown to users for a failed prediction.
const UserMessage = "could not reach prediction service"

// ErrorKind classifies a PredictionError.
type ErrorKind string

const (
	// KindNetwork means the request never produced a response.
	KindNetwork ErrorKind = "network"
	// KindStatus means the service answered with a non-2xx status.
	KindStatus ErrorKind = "status"
	// KindMalformed means the response body could not be used.
	KindMalformed ErrorKind = "malformed"
)

// PredictionError is returned by Client.Predict for every failure.
type PredictionError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *PredictionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("prediction failed (%s)", e.Kind)
	}
	return fmt.Sprintf("prediction failed (%s): %v", e.Kind, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// UserMessage returns the generic message safe to show to users.
func (e *PredictionError) UserMessage() string {
	return UserMessage
}

// IsPredictionError reports whether err is or wraps a *PredictionError.
func IsPredictionError(err error) bool {
	var perr *PredictionError
	return errors.As(err, &perr)
}
