package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kris-hansen/summaprompt/utils/feedback"
	"github.com/kris-hansen/summaprompt/utils/generator"
)

// Sentinel errors for workflow operations.
var (
	ErrPreconditionNotMet  = errors.New("precondition not met")
	ErrNotAtStep           = errors.New("operation not available at the current step")
	ErrInvalidTransition   = errors.New("invalid step transition")
	ErrNoPendingIteration  = errors.New("no pending iteration")
	ErrIterationLimit      = errors.New("iteration limit reached")
	ErrInvalidInput        = errors.New("invalid input")
	ErrGenerationFailure   = generator.ErrGenerationFailure
	ErrNoFeedbackToIterate = generator.ErrNoFeedbackToIterate
	ErrInvalidFeedback     = feedback.ErrInvalidFeedback
)

// PreconditionError names the step that could not be entered and the
// session field it is missing
type PreconditionError struct {
	Step         Step
	MissingField string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot enter %s: %s is required", e.Step, e.MissingField)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionNotMet
}

// StepError is returned when an operation is called outside the steps that
// accept it
type StepError struct {
	Op      string
	Current Step
	Allowed []Step
}

func (e *StepError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("%s is only available at %s (session is at %s)", e.Op, strings.Join(allowed, " or "), e.Current)
}

func (e *StepError) Is(target error) bool {
	return target == ErrNotAtStep
}

// InputError describes a rejected step input
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IterationLimitError reports how many iterations were already approved
type IterationLimitError struct {
	Count int
	Limit int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("iteration limit reached: %d of %d iterations used", e.Count, e.Limit)
}

func (e *IterationLimitError) Is(target error) bool {
	return target == ErrIterationLimit
}
