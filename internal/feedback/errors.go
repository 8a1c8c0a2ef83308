package feedback

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrAlreadyAnswered = errors.New("review already answered")
	ErrNoExternalID    = errors.New("review has no marketplace id")
	ErrSendInProgress  = errors.New("send in progress")
	ErrSendFailed      = errors.New("failed to send response to marketplace")
)
