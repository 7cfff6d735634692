package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/lakeflow/pkg/eventbus"
	"github.com/dukex/lakeflow/pkg/registry"
	"github.com/dukex/lakeflow/pkg/tasks/connector"
	"github.com/dukex/lakeflow/pkg/tasks/objects"
	"github.com/dukex/lakeflow/pkg/tasks/queue"
	"github.com/dukex/lakeflow/pkg/tasks/staging"
	"github.com/dukex/lakeflow/pkg/tasks/status"
)

// Adapters configures the backends of the native tasks. An empty setting
// leaves the tasks that need it registered but unbound; runs reaching them
// fail with registry.ErrTaskNotBound.
type Adapters struct {
	MetadataRoot string

	Connector connector.Config

	StagingDatabaseURL string
	StagingSchema      string

	Redis queue.Options

	Reports   status.ReportStore
	Publisher eventbus.EventPublisher

	PluginsPath string
}

// Closer releases the connections opened for the adapters.
type Closer func() error

func registerTaskPlugins(reg *registry.Registry, pluginsPath string) {
	if pluginsPath == "" {
		return
	}

	taskPlugins, err := reg.LoadTaskPlugins(pluginsPath)
	if err != nil {
		panic(err)
	}

	for _, plugin := range taskPlugins {
		reg.RegisterTask(plugin)
	}
}

func registerNativeTasks(ctx context.Context, log *slog.Logger, reg *registry.Registry, adapters Adapters) []func() error {
	var closers []func() error

	var store objects.ObjectStore
	if adapters.MetadataRoot != "" {
		store = objects.NewDirStore(adapters.MetadataRoot)
	}

	reg.RegisterTask(objects.NewListObjectsFactory(store))
	reg.RegisterTask(objects.NewFilterObjectsFactory())
	reg.RegisterTask(status.NewReportStatusFactory(adapters.Reports, adapters.Publisher, log))

	var client *connector.Client

	if adapters.Connector.BaseURL != "" {
		var err error

		client, err = connector.NewClient(adapters.Connector)
		if err != nil {
			panic(fmt.Errorf("failed to create connector client: %w", err))
		}
	}

	for _, factory := range connector.Factories(client) {
		reg.RegisterTask(factory)
	}

	var stagingStore *staging.Store

	if adapters.StagingDatabaseURL != "" {
		var err error

		stagingStore, err = staging.Open(ctx, log, adapters.StagingDatabaseURL, adapters.StagingSchema)
		if err != nil {
			panic(fmt.Errorf("failed to open staging database: %w", err))
		}

		closers = append(closers, stagingStore.Close)
	}

	for _, factory := range staging.Factories(stagingStore) {
		reg.RegisterTask(factory)
	}

	var queues *queue.Queues

	if adapters.Redis.Addr != "" {
		var err error

		queues, err = queue.Connect(ctx, log, adapters.Redis)
		if err != nil {
			panic(err)
		}

		closers = append(closers, queues.Close)
	}

	reg.RegisterTask(queue.NewSnapshotFactory(queues))
	reg.RegisterTask(queue.NewPurgeFactory(queues))

	return closers
}

// bindAll creates an instance of every registered task whose backend is
// configured.
func bindAll(ctx context.Context, log *slog.Logger, reg *registry.Registry) {
	for _, factory := range reg.Factories() {
		err := reg.Bind(factory.ID(), nil)
		if err != nil {
			log.WarnContext(ctx, "Task unavailable", "task", factory.ID(), "error", err)
		}
	}
}

// NewRegistry registers the plugin and native tasks and binds every task
// whose backend is configured.
func NewRegistry(ctx context.Context, log *slog.Logger, adapters Adapters) (*registry.Registry, Closer) {
	reg := registry.NewRegistry(log)

	registerTaskPlugins(reg, adapters.PluginsPath)
	closers := registerNativeTasks(ctx, log, reg, adapters)

	bindAll(ctx, log, reg)

	return reg, func() error {
		var firstErr error

		for _, closeFn := range closers {
			if err := closeFn(); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		return firstErr
	}
}
