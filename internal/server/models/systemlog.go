package models

import "time"

const (
	SystemLogFailed  = "failed"
	SystemLogSuccess = "success"
)

// SystemLog records the outcome of an operation for later diagnostics.
// Data is free-form and stored as JSON.
type SystemLog struct {
	ID           string
	ClassName    string
	FunctionName string
	Slug         string
	Status       string
	Data         map[string]any
	CreatedAt    time.Time
}
