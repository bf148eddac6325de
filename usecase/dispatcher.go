package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownCommand is returned by Execute for an unregistered name.
var ErrUnknownCommand = errors.New("unknown command")

// CommandHandler runs an operator command with its remaining arguments.
type CommandHandler func(ctx context.Context, args []string) (interface{}, error)

// Command is an operator action run outside the HTTP surface, such as a
// ledger verification or stock rebuild.
type Command struct {
	Name    string
	Usage   string
	Handler CommandHandler
}

type Dispatcher struct {
	commands map[string]Command
	mu       sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{commands: make(map[string]Command)}
}

// Register adds a command. Names must be unique.
func (d *Dispatcher) Register(cmd Command) error {
	if cmd.Name == "" || cmd.Handler == nil {
		return fmt.Errorf("command %q: name and handler are required", cmd.Name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.commands[cmd.Name]; exists {
		return fmt.Errorf("command %q already registered", cmd.Name)
	}
	d.commands[cmd.Name] = cmd
	return nil
}

func (d *Dispatcher) Execute(ctx context.Context, name string, args []string) (interface{}, error) {
	d.mu.RLock()
	cmd, ok := d.commands[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd.Handler(ctx, args)
}

// Commands lists registered commands sorted by name.
func (d *Dispatcher) Commands() []Command {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Command, 0, len(d.commands))
	for _, cmd := range d.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
