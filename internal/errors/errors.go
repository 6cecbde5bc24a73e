package errors

import stderrors "errors"

// Ledger rejections. Every one of these is returned before any state or
// balance has been touched.
var (
	ErrNotOwner            = stderrors.New("staking: not owner")
	ErrInsufficientBalance = stderrors.New("staking: insufficient balance")
	ErrLocked              = stderrors.New("staking: in lock period")
	ErrInvalidAmount       = stderrors.New("staking: amount must be greater than zero")
	ErrInvalidTier         = stderrors.New("staking: invalid tier")
	ErrNothingStaked       = stderrors.New("staking: nothing staked in tier")
	ErrOverflow            = stderrors.New("staking: arithmetic overflow")
	ErrClockRegression     = stderrors.New("staking: clock is behind recorded timestamp")
	ErrNotInitialized      = stderrors.New("staking: pool not initialized")
	ErrAlreadyInitialized  = stderrors.New("staking: pool already initialized")
)

// Custody rejections raised by the token bank.
var (
	ErrInvalidMint          = stderrors.New("custody: invalid mint")
	ErrAccountNotFound      = stderrors.New("custody: token account not found")
	ErrUnauthorizedTransfer = stderrors.New("custody: authority does not own source account")
)
