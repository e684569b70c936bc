package core

import (
	"errors"
	"sync"
)

// CommandHandler decodes its own arguments from the frame data and advances
// the slice past them
type CommandHandler func(data *[]byte) error

// Command is one dictionary entry. Responses (device to host) have no handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "channel=%c value=%i"
	Handler CommandHandler
}

// Signature returns the dictionary key: name followed by its format
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

var ErrUnknownCommand = errors.New("unknown command")

// CommandRegistry assigns message ids in registration order
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command // indexed by ID
	nameToID map[string]uint16
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command and returns its id. Registering a name twice
// returns the first id.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	})
	r.nameToID[name] = id
	return id
}

// RegisterResponse registers a message the device sends to the host
func (r *CommandRegistry) RegisterResponse(name string, format string) uint16 {
	return r.Register(name, format, nil)
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered messages
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler registered for cmdID. Response ids have no
// handler and are unknown here.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// GetCommandsAndResponses splits the registry by direction, keyed by
// signature
func (r *CommandRegistry) GetCommandsAndResponses() (map[string]int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]int)
	responses := make(map[string]int)
	for _, cmd := range r.commands {
		if cmd.Handler != nil {
			commands[cmd.Signature()] = int(cmd.ID)
		} else {
			responses[cmd.Signature()] = int(cmd.ID)
		}
	}
	return commands, responses
}
