package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes the lifecycle of every consumed message.
// A BeforeHandle error skips the handler and sends the message straight to the DLQ.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, msg kafka.Message) error
	AfterHandle(ctx context.Context, msg kafka.Message, err error, took time.Duration)
	OnRetry(ctx context.Context, msg kafka.Message, attempt int, err error)
	OnDLQ(ctx context.Context, msg kafka.Message, err error)
}

// HookFuncs adapts plain functions to ConsumerHook; nil funcs are skipped.
type HookFuncs struct {
	Before func(ctx context.Context, msg kafka.Message) error
	After  func(ctx context.Context, msg kafka.Message, err error, took time.Duration)
	Retry  func(ctx context.Context, msg kafka.Message, attempt int, err error)
	DLQ    func(ctx context.Context, msg kafka.Message, err error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, msg kafka.Message) error {
	if h.Before == nil {
		return nil
	}
	return h.Before(ctx, msg)
}

func (h HookFuncs) AfterHandle(ctx context.Context, msg kafka.Message, err error, took time.Duration) {
	if h.After != nil {
		h.After(ctx, msg, err, took)
	}
}

func (h HookFuncs) OnRetry(ctx context.Context, msg kafka.Message, attempt int, err error) {
	if h.Retry != nil {
		h.Retry(ctx, msg, attempt, err)
	}
}

func (h HookFuncs) OnDLQ(ctx context.Context, msg kafka.Message, err error) {
	if h.DLQ != nil {
		h.DLQ(ctx, msg, err)
	}
}

// HookError marks a message as rejected by a hook.
type HookError struct {
	Code   string
	Reason string
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook rejected message [%s]: %s", e.Code, e.Reason)
}

// Reject builds a HookError for BeforeHandle.
func Reject(code, reason string) error {
	return &HookError{Code: code, Reason: reason}
}

type hookChain []ConsumerHook

func (c hookChain) before(ctx context.Context, msg kafka.Message) error {
	for _, h := range c {
		if err := h.BeforeHandle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (c hookChain) after(ctx context.Context, msg kafka.Message, err error, took time.Duration) {
	for _, h := range c {
		h.AfterHandle(ctx, msg, err, took)
	}
}

func (c hookChain) retry(ctx context.Context, msg kafka.Message, attempt int, err error) {
	for _, h := range c {
		h.OnRetry(ctx, msg, attempt, err)
	}
}

func (c hookChain) dlq(ctx context.Context, msg kafka.Message, err error) {
	for _, h := range c {
		h.OnDLQ(ctx, msg, err)
	}
}
