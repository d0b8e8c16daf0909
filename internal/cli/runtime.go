package cli

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kagent-dev/toolchat/pkg/config"
	"github.com/kagent-dev/toolchat/pkg/llm"
	"github.com/kagent-dev/toolchat/pkg/metrics"
	"github.com/kagent-dev/toolchat/pkg/orchestrator"
	"github.com/kagent-dev/toolchat/pkg/store"
	"github.com/kagent-dev/toolchat/pkg/tools"
)

// runtime holds the wired components shared by the serve and chat commands.
type runtime struct {
	registry     *tools.Registry
	executor     *tools.Executor
	store        *store.GormStore
	gateway      *llm.GeminiGateway
	registerer   *prometheus.Registry
	metrics      *metrics.Metrics
	orchestrator *orchestrator.Orchestrator
}

func newRuntime(ctx context.Context, cfg *config.Config, log logr.Logger) (*runtime, error) {
	registry, err := tools.NewRegistryFromConfig(cfg.Tools)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := st.SyncTools(ctx, toolRecords(registry)); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to sync tool catalog: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	executor := tools.NewExecutor(registry, log)
	gateway := llm.NewGeminiGateway(cfg.Gemini, log)
	if err := gateway.CheckCredentials(); err != nil {
		log.Info("Gemini API key is not configured; chat requests will fail until it is set", "env", cfg.Gemini.APIKeyEnv)
	}

	return &runtime{
		registry:     registry,
		executor:     executor,
		store:        st,
		gateway:      gateway,
		registerer:   reg,
		metrics:      m,
		orchestrator: orchestrator.New(gateway, registry, executor, st, m, log),
	}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}

// toolRecords converts the registry into rows for the tools table, keeping
// registration order.
func toolRecords(registry *tools.Registry) []store.ToolRecord {
	list := registry.List()
	records := make([]store.ToolRecord, 0, len(list))
	for i, tool := range list {
		params := tool.Parameters()
		rec := store.ToolRecord{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  make([]store.ToolParameter, 0, len(params)),
			Position:    i,
		}
		for _, p := range params {
			rec.Parameters = append(rec.Parameters, store.ToolParameter{
				Name:        p.Name,
				Type:        p.Type,
				Description: p.Description,
			})
		}
		records = append(records, rec)
	}
	return records
}
