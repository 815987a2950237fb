package services

import "errors"

// Failure taxonomy shared by the services. Local validation failures are
// rejected before any remote call; remote failures degrade the operation
// instead of failing the process.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrDuplicateTarget  = errors.New("an active target with this problem link already exists")
	ErrSelfFriend       = errors.New("cannot add yourself as a friend")
	ErrDuplicateFriend  = errors.New("friend already added")
	ErrEmptyInput       = errors.New("required input is empty")
)
