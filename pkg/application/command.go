package application

import (
	"context"
	"sync"

	"github.com/sukryu/depdex/pkg/domain"
	"github.com/sukryu/depdex/pkg/utils"
)

// CommandHandler handles execution of commands against the index.
type CommandHandler struct {
	index  *domain.Index
	logger utils.Logger
	wg     sync.WaitGroup // For async command execution tracking
}

// NewCommandHandler creates a new CommandHandler instance.
func NewCommandHandler(index *domain.Index, logger utils.Logger) *CommandHandler {
	return &CommandHandler{
		index:  index,
		logger: logger,
	}
}

// Command defines the interface for all commands.
type Command interface {
	Execute(ctx context.Context, handler *CommandHandler) error
}

// StorePackageCommand stores one package document.
type StorePackageCommand struct {
	Package domain.Package
}

// Execute executes the StorePackageCommand.
func (c *StorePackageCommand) Execute(ctx context.Context, handler *CommandHandler) error {
	handler.logger.Debug("executing StorePackageCommand", "package", c.Package.ID())
	if err := handler.index.Store(ctx, c.Package); err != nil {
		handler.logger.Error(err, "failed to store package", "package", c.Package.ID())
		return err
	}
	return nil
}

// StorePackagesCommand stores documents in order and stops at the first failure.
type StorePackagesCommand struct {
	Packages []domain.Package
}

// Execute executes the StorePackagesCommand.
func (c *StorePackagesCommand) Execute(ctx context.Context, handler *CommandHandler) error {
	handler.logger.Info("executing StorePackagesCommand", "count", len(c.Packages))
	for i := range c.Packages {
		cmd := StorePackageCommand{Package: c.Packages[i]}
		if err := cmd.Execute(ctx, handler); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteCommand executes a command synchronously.
func (h *CommandHandler) ExecuteCommand(ctx context.Context, cmd Command) error {
	return cmd.Execute(ctx, h)
}

// ExecuteCommandAsync executes a command asynchronously. The returned channel
// yields the command's error (nil on success) and is then closed.
func (h *CommandHandler) ExecuteCommandAsync(ctx context.Context, cmd Command) <-chan error {
	done := make(chan error, 1)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		err := cmd.Execute(ctx, h)
		if err != nil {
			h.logger.Error(err, "async command execution failed")
		}
		done <- err
		close(done)
	}()
	return done
}

func (h *CommandHandler) Index() *domain.Index {
	return h.index
}

// Wait waits for all asynchronous commands to complete.
func (h *CommandHandler) Wait() {
	h.wg.Wait()
}
