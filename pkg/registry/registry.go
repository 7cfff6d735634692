// Package registry maps task resource names to external operations.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"sort"
	"sync"

	"github.com/dukex/lakeflow/pkg/protocol"
)

var (
	ErrTaskNotRegistered = errors.New("task not registered")
	ErrTaskNotBound      = errors.New("task not bound")
)

// Registry holds task factories and the configured task instances the engine
// resolves by resource name.
type Registry struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	factories map[string]protocol.TaskFactory
	tasks     map[string]protocol.Task
	schemas   map[string]map[string]any
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[string]protocol.TaskFactory),
		tasks:     make(map[string]protocol.Task),
		schemas:   make(map[string]map[string]any),
	}
}

func (r *Registry) RegisterTask(factory protocol.TaskFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[factory.ID()] = factory
}

// Bind creates the task instance for a registered factory.
func (r *Registry) Bind(id string, config map[string]any) error {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotRegistered, id)
	}

	task, err := factory.Create(config)
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[id] = task
	r.schemas[id] = factory.Schema()

	r.logger.Debug("Bound task", "task", id)

	return nil
}

// Register binds a task instance directly, without a factory or input schema.
func (r *Registry) Register(id string, task protocol.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[id] = task
	delete(r.schemas, id)
}

// Task returns the bound task for a resource name. Tasks bound through a
// factory validate their input against the factory schema first.
//
//nolint:ireturn
func (r *Registry) Task(id string) (protocol.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		if _, registered := r.factories[id]; registered {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotBound, id)
		}

		return nil, fmt.Errorf("%w: %s", ErrTaskNotRegistered, id)
	}

	schema := r.schemas[id]
	if schema == nil {
		return task, nil
	}

	return &validatingTask{id: id, schema: schema, next: task}, nil
}

// Factories lists registered factories sorted by ID.
func (r *Registry) Factories() []protocol.TaskFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.TaskFactory, 0, len(r.factories))
	for _, factory := range r.factories {
		factories = append(factories, factory)
	}

	sort.Slice(factories, func(i, j int) bool {
		return factories[i].ID() < factories[j].ID()
	})

	return factories
}

// LoadTaskPlugins opens every <pluginsPath>/tasks/**/*.so and returns the
// factory each exports as the "Task" symbol.
func (r *Registry) LoadTaskPlugins(pluginsPath string) ([]protocol.TaskFactory, error) {
	rootPath := pluginsPath + "/tasks"

	_, err := os.Stat(rootPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	pluginPathList, err := fs.Glob(os.DirFS(rootPath), "**/*.so")
	if err != nil {
		return nil, err
	}

	l := r.logger.With(slog.String("path", pluginsPath))
	l.Info("Loading task plugins", "count", len(pluginPathList))

	factories := make([]protocol.TaskFactory, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		symbol, err := plg.Lookup("Task")
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p, err)
		}

		factory, ok := symbol.(protocol.TaskFactory)
		if !ok {
			return nil, fmt.Errorf("plugin %s: Task symbol is not a task factory", p)
		}

		factories = append(factories, factory)

		l.Info("Loaded task plugin", slog.String("plugin", p), slog.String("task", factory.ID()))
	}

	return factories, nil
}
