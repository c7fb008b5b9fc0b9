// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// Stage errors. Each pipeline stage wraps its failures in one of these so
// callers can tell them apart with errors.Is.
var (
	// ErrAcquisition indicates a network, auth, timeout, or missing-file
	// failure while acquiring content.
	ErrAcquisition = errors.New("acquisition failed")

	// ErrParse indicates the document could not be opened or read.
	ErrParse = errors.New("parse failed")

	// ErrExtraction indicates a malformed structured-generation response.
	ErrExtraction = errors.New("metadata extraction failed")

	// ErrFigureEngine indicates the figure extractor failed.
	ErrFigureEngine = errors.New("figure extraction failed")

	// ErrRender indicates the digest could not be generated or written.
	ErrRender = errors.New("digest rendering failed")

	// ErrSerialize indicates the digest was converted to blocks with
	// content lost: blocks past the limit or figures left as placeholders.
	ErrSerialize = errors.New("block conversion incomplete")

	// ErrPersistence indicates a schema or remote-store failure.
	ErrPersistence = errors.New("persistence failed")
)

// Stage names a pipeline stage.
type Stage string

const (
	StageClassify  Stage = "classify"
	StageAcquire   Stage = "acquire"
	StageParse     Stage = "parse"
	StageExtract   Stage = "extract"
	StageWorkspace Stage = "workspace"
	StageFigures   Stage = "figures"
	StageRender    Stage = "render"
	StageSerialize Stage = "serialize"
	StagePersist   Stage = "persist"
)

// StageError ties an error to the stage that produced it.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

// NewStageError wraps err under the given stage and sentinel kind.
func NewStageError(stage Stage, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Is matches the sentinel kind.
func (e *StageError) Is(target error) bool {
	return target == e.Kind
}

func (e *StageError) Unwrap() error {
	return e.Err
}
