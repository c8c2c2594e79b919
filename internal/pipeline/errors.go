package pipeline

import (
	"errors"
	"fmt"

	"github.com/petii/mp3-magic-machine/internal/archive"
	"github.com/petii/mp3-magic-machine/internal/audio"
	"github.com/petii/mp3-magic-machine/internal/bridge"
	"github.com/petii/mp3-magic-machine/internal/codec"
	"github.com/petii/mp3-magic-machine/internal/staging"
	"github.com/petii/mp3-magic-machine/internal/store"
)

// Failure kinds carried by RecordError
var (
	ErrSourceRead      = errors.New("source read error")
	ErrContainerFormat = errors.New("container format error")
	ErrEncode          = errors.New("encode error")
	ErrIO              = errors.New("io error")
	ErrDelivery        = errors.New("delivery error")
)

// Stage is a step of the per-invocation state machine
type Stage string

const (
	StageIdle       Stage = "idle"
	StageFetching   Stage = "fetching_object"
	StageDecoding   Stage = "decoding"
	StageEncoding   Stage = "encoding"
	StageStaged     Stage = "staged"
	StageAssembling Stage = "assembling"
	StageDelivering Stage = "delivering"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// RecordError reports which object failed, in which stage, and why.
// errors.Is matches both the kind and the underlying cause.
type RecordError struct {
	Kind   error
	Stage  Stage
	Bucket string
	Key    string
	Err    error
}

func (e *RecordError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%v during %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%v during %s of %s/%s: %v", e.Kind, e.Stage, e.Bucket, e.Key, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// classify maps a component error to its failure kind. Errors no component
// claims fall back to the kind of the stage they happened in.
func classify(stage Stage, err error) error {
	var delivery *deliveryFailure
	if errors.As(err, &delivery) {
		return ErrDelivery
	}

	switch {
	case errors.Is(err, bridge.ErrSourceRead), errors.Is(err, store.ErrNotFound):
		return ErrSourceRead
	case errors.Is(err, audio.ErrContainerFormat):
		return ErrContainerFormat
	case errors.Is(err, codec.ErrEncode):
		return ErrEncode
	case errors.Is(err, staging.ErrIO), errors.Is(err, archive.ErrIO), errors.Is(err, archive.ErrDuplicateEntry):
		return ErrIO
	}

	switch stage {
	case StageFetching, StageDecoding:
		// Unclaimed failures while reading are fetch problems
		return ErrSourceRead
	case StageEncoding:
		return ErrEncode
	case StageStaged, StageAssembling:
		return ErrIO
	default:
		return ErrDelivery
	}
}
