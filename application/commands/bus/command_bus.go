package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	pkgerrors "cms-backend/pkg/errors"
)

// Command represents a command that changes state
type Command interface {
	Validate() error
}

// CommandHandler handles a specific command type. The result is whatever the
// caller needs to report back, usually the saved entity.
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (interface{}, error)
}

// CommandBus dispatches commands to their handlers
type CommandBus struct {
	handlers    map[reflect.Type]CommandHandler
	middlewares []Middleware
	mu          sync.RWMutex
}

// NewCommandBus creates a new command bus. Middlewares wrap every handler,
// the first one outermost.
func NewCommandBus(middlewares ...Middleware) *CommandBus {
	return &CommandBus{
		handlers:    make(map[reflect.Type]CommandHandler),
		middlewares: middlewares,
	}
}

// Register registers a handler for a command type
func (b *CommandBus) Register(cmdType Command, handler CommandHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(cmdType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for command type %s", t.Name())
	}

	b.handlers[t] = NewPipeline(b.middlewares...).Execute(handler)
	return nil
}

// Send validates a command and dispatches it to its handler. Errors keep
// their AppError classification through the wrapping.
func (b *CommandBus) Send(ctx context.Context, cmd Command) (interface{}, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("command validation failed: %w", err)
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(cmd)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, cmd)
	}

	result, err := handler.Handle(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("command handler failed: %w", err)
	}
	return result, nil
}

// Middleware defines command middleware
type Middleware func(next CommandHandler) CommandHandler

// CommandHandlerFunc is an adapter to allow functions to be used as handlers
type CommandHandlerFunc func(ctx context.Context, cmd Command) (interface{}, error)

// Handle implements CommandHandler
func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (interface{}, error) {
	return f(ctx, cmd)
}

// Typed adapts a handler method for one concrete command type.
func Typed[C Command](fn func(ctx context.Context, cmd C) (interface{}, error)) CommandHandler {
	return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		typed, ok := cmd.(C)
		if !ok {
			return nil, fmt.Errorf("unexpected command type %T", cmd)
		}
		return fn(ctx, typed)
	})
}

// LoggingMiddleware logs command execution. Rejections the caller caused
// (validation, authorization, conflicts) are logged at Info, store and
// internal failures at Error.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			cmdType := reflect.TypeOf(cmd).Name()
			started := time.Now()
			logger.Debug("Executing command", zap.String("type", cmdType))

			result, err := next.Handle(ctx, cmd)
			if err != nil {
				log := logger.Info
				if pkgerrors.StatusOf(err) >= 500 {
					log = logger.Error
				}
				log("Command failed",
					zap.String("type", cmdType),
					zap.Duration("duration", time.Since(started)),
					zap.Error(err))
			} else {
				logger.Info("Command succeeded",
					zap.String("type", cmdType),
					zap.Duration("duration", time.Since(started)))
			}
			return result, err
		})
	}
}

// Observer is told the outcome of every command.
type Observer interface {
	ObserveCommand(name string, duration time.Duration, err error)
}

// MetricsMiddleware reports command outcomes to an observer
func MetricsMiddleware(observer Observer) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			started := time.Now()
			result, err := next.Handle(ctx, cmd)
			observer.ObserveCommand(reflect.TypeOf(cmd).Name(), time.Since(started), err)
			return result, err
		})
	}
}

// Pipeline chains multiple middleware together
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline(middlewares ...Middleware) *Pipeline {
	return &Pipeline{
		middlewares: middlewares,
	}
}

// Execute runs the command through the pipeline
func (p *Pipeline) Execute(handler CommandHandler) CommandHandler {
	// Apply middleware in reverse order
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		handler = p.middlewares[i](handler)
	}
	return handler
}

// Errors
var (
	ErrHandlerNotFound = errors.New("command handler not found")
)
