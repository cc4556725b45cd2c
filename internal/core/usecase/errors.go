package usecase

import "errors"

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrWalletInactive     = errors.New("wallet is not active")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrDailyLimitExceeded = errors.New("daily spending limit exceeded")
	ErrStudentRequired    = errors.New("student id is required")
	ErrInvalidSettings    = errors.New("invalid wallet settings")
	ErrInvalidPeriod      = errors.New("invalid statement period")
)
