package tasks

import (
	"context"
	"log"
	"sync"

	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
)

// TaskHandler is the function signature for a task handler. It receives the
// full scheduled task record and returns a result map and error.
type TaskHandler func(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error)

// Registry stores the mapping of task names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]TaskHandler
}

// GlobalRegistry is the default global registry
var GlobalRegistry = &Registry{
	handlers: make(map[string]TaskHandler),
}

// Register adds a handler for a task name
func (r *Registry) Register(name string, handler TaskHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Get retrieves a handler for a task name
func (r *Registry) Get(name string) (TaskHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}

// RegisterHandler is a helper to register to the global registry
func RegisterHandler(name string, handler TaskHandler) {
	GlobalRegistry.Register(name, handler)
}

// GetHandler is a helper to get from the global registry
func GetHandler(name string) (TaskHandler, bool) {
	return GlobalRegistry.Get(name)
}

// Initialize registers diagnostic tasks
func Initialize() {
	RegisterHandler("log_info", func(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
		message, ok := task.Arguments["message"].(string)
		if !ok {
			message = "No message provided"
		}
		log.Printf("[Task: log_info] Message: %s", message)
		return map[string]interface{}{"status": "success", "message": message}, nil
	})
}
