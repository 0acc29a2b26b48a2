package domain

import "context"

// HookEvent names a point in a record's lifecycle.
type HookEvent string

const (
	BeforeCreate HookEvent = "before_create"
	AfterCreate  HookEvent = "after_create"
	BeforeUpdate HookEvent = "before_update"
	BeforeDelete HookEvent = "before_delete"
)

// Hook runs at a lifecycle point. A non-nil error aborts the operation.
type Hook[T any] func(ctx context.Context, item T) error

// HookRegistry keeps hooks per event in registration order.
// It is not safe for concurrent registration; register at wiring time.
type HookRegistry[T any] struct {
	byEvent map[HookEvent][]Hook[T]
}

func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{byEvent: map[HookEvent][]Hook[T]{}}
}

func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.byEvent[event] = append(r.byEvent[event], hook)
}

// Run calls the hooks of event until one fails.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, item T) error {
	hooks := r.byEvent[event]
	for i := range hooks {
		if err := hooks[i](ctx, item); err != nil {
			return err
		}
	}
	return nil
}
