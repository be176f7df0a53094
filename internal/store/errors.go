package store

import "errors"

var (
	ErrQueueNotFound   = errors.New("queue not found")
	ErrQueuePaused     = errors.New("queue is paused")
	ErrWindowNotFound  = errors.New("window not found")
	ErrWindowBusy      = errors.New("window has an active member")
	ErrServiceNotFound = errors.New("service not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrNoMember        = errors.New("no eligible member waiting")
	ErrInvalidState    = errors.New("member state does not allow this action")
)
