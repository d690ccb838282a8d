package errors

import "fmt"

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrBusClosed     = fmt.Errorf("event bus closed")
	ErrFloodDetected = fmt.Errorf("flood detected")
	ErrEmptyMessage  = fmt.Errorf("empty message")
	ErrLineTooLong   = fmt.Errorf("line too long")
)
