package goCtrl

import "errors"

var (
	// ErrClientNotReady is returned when a Client method is called before
	// Builder.Build completed.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrAuthorizationRejected is returned when the controller rejects the
	// client credential twice in a row for the same call: once on the
	// original attempt and once after a forced refresh.
	ErrAuthorizationRejected = errors.New("authorization rejected by controller")
	// ErrInvalidConfig wraps all configuration validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")
)
