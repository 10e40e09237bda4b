package pipeline

import (
	"errors"
	"fmt"
)

// Stage names used in failure reporting. A run that stops records which
// stage failed; notification is absent on purpose — it cannot fail a run.
const (
	StageClassification = "classification"
	StageExtraction     = "extraction"
	StageTransformation = "transformation"
	StagePersist        = "persist"
)

// ErrUnsupportedBillType marks a bill_type outside the recognized template
// families. Extraction must not silently guess a template.
var ErrUnsupportedBillType = errors.New("unsupported document type")

// StageError is a terminal run failure tagged with the stage that caused it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the failing stage name, or "" if err carries none.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
