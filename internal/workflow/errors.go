package workflow

import "errors"

const (
	msgMissingInput  = "Please upload an image and enter a prompt."
	msgNoImage       = "The AI did not return an image. Try refining your prompt."
	msgUnknown       = "An unknown error occurred."
	msgHistoryLoad   = "Could not load generation history."
	msgHistorySelect = "Could not load selected history item."
	msgDeleteFailed  = "Could not delete history item."
)

var (
	ErrNotFound     = errors.New("history entry not found")
	ErrSuperseded   = errors.New("request superseded by a newer one")
	ErrDeleteFailed = errors.New(msgDeleteFailed)
)

// ValidationError is raised before any network call when the workspace is
// missing an image or a prompt.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// userMessage is the text shown for err. Typed errors from the clients
// already carry their user-facing wording.
func userMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
