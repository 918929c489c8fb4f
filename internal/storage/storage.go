package storage

import "errors"

var (
	ErrUserExists       = errors.New("user already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrPremierNotFound  = errors.New("premier not found")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrRestoreNotPending = errors.New("password restore not pending")
)
