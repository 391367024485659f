package sweep

import "errors"

var (
	ErrEmptyAxis      = errors.New("axis has no values")
	ErrUnknownMode    = errors.New("unknown stage mode")
	ErrWrongStageMode = errors.New("stage has the wrong mode")
	ErrBadCondition   = errors.New("when must render a boolean")
)
