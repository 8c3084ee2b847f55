package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a resource is absent or soft-deleted
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateEmail is returned when a user email is already taken by a
	// live user
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrDuplicatePosition is returned when a stage position is already
	// occupied within the pipeline
	ErrDuplicatePosition = errors.New("stage position already occupied")

	// ErrDealClosed is returned when mutating a deal that is won or lost
	ErrDealClosed = errors.New("deal is closed")

	// ErrDealNotClosed is returned when reopening a deal that is still open
	ErrDealNotClosed = errors.New("deal is not closed")

	// ErrInvalidStatus is returned on an unknown deal status value
	ErrInvalidStatus = errors.New("invalid deal status")

	// ErrPipelineHasDeals is returned when deleting a pipeline or stage that
	// open deals still occupy
	ErrPipelineHasDeals = errors.New("pipeline has open deals")

	// ErrStageHasDeals is returned when deleting a stage that deals reference
	ErrStageHasDeals = errors.New("stage is referenced by deals")

	// ErrLastStage is returned when deleting the only stage of a pipeline
	ErrLastStage = errors.New("pipeline must keep at least one stage")

	// ErrNoDefaultPipeline is returned when a deal is created without a
	// pipeline and no default pipeline exists
	ErrNoDefaultPipeline = errors.New("no default pipeline configured")

	// ErrCompletedBeforeScheduled is returned when an activity completion
	// time precedes its scheduled time
	ErrCompletedBeforeScheduled = errors.New("completion time precedes scheduled time")
)
