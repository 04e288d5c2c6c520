package cmd

import (
	"github.com/bnema/nap-alarm/internal/failure"
)

const (
	ExitOK       = 0
	ExitAPI      = 1
	ExitFailure  = 2
	ExitCanceled = 130
)

// ExitCode maps a run error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch failure.KindOf(err) {
	case failure.KindAPI:
		return ExitAPI
	case failure.KindCanceled, failure.KindTimeout:
		return ExitCanceled
	default:
		return ExitFailure
	}
}

// ErrorMessage is the line printed for a failed run
func ErrorMessage(err error) string {
	if failure.KindOf(err) == failure.KindAPI {
		return "An error occurred: " + err.Error()
	}
	return "Error: " + err.Error()
}
