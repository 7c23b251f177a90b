package collection

import (
	"context"
	"errors"
)

var (
	ErrValidation           = errors.New("validation")
	ErrCancelled            = errors.New("cancelled by user")
	ErrConfirmationRequired = errors.New("confirmation required")
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice is a user-visible, dismissable outcome message.
type Notice struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

var discard = NotifierFunc(func(context.Context, Notice) {})

// Confirmer asks the user to approve a destructive action. It returns
// ErrConfirmationRequired when the answer is not known yet.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

var pending = ConfirmFunc(func(context.Context, string) (bool, error) {
	return false, ErrConfirmationRequired
})
