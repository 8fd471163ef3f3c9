package domain

import "errors"

var (
	ErrBufferFull     = errors.New("chat buffer is full")
	ErrReviewNotFound = errors.New("review request not found")
	ErrReviewClosed   = errors.New("review request already decided")
	ErrNotAuthorized  = errors.New("decider is not a chat admin")
)
