package services

import "errors"

var (
	// ErrInvalidInput: bad amount or phone number, rejected before any
	// network call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateInProgress: the order already has an unexpired intent.
	ErrDuplicateInProgress = errors.New("payment already in progress for this order")
	// ErrOrderNotFound: the order the payment refers to does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrAlreadyPaid: the order's payment state is terminal; paid orders
	// never accept another push.
	ErrAlreadyPaid = errors.New("order already paid")
)
