package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/groundedcore/internal/alerts"
	"github.com/haasonsaas/groundedcore/internal/cache"
	"github.com/haasonsaas/groundedcore/internal/config"
	"github.com/haasonsaas/groundedcore/internal/controlplane"
	"github.com/haasonsaas/groundedcore/internal/dialog"
	"github.com/haasonsaas/groundedcore/internal/evidence"
	"github.com/haasonsaas/groundedcore/internal/gate"
	"github.com/haasonsaas/groundedcore/internal/llmprovider"
	"github.com/haasonsaas/groundedcore/internal/observability"
	"github.com/haasonsaas/groundedcore/internal/personastore"
	"github.com/haasonsaas/groundedcore/internal/sessionmemory"
	"github.com/haasonsaas/groundedcore/internal/toolclient"
	"github.com/haasonsaas/groundedcore/internal/tools"
	"github.com/haasonsaas/groundedcore/internal/trace"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// evidenceGatePolicyName is the PolicyStore document name the Evidence Gate's
// citation floor is published under, alongside alerts.PolicyNameAlertRules.
const evidenceGatePolicyName = "evidence-gate"

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the groundedcore HTTP server",
		Long: `Start the groundedcore HTTP server.

The server will:
1. Load configuration from the given YAML/JSON5 file (env overrides apply)
2. Build the cache, evidence, session memory, and control-plane stores
3. Build the LLM provider chain and the Dialog Runtime
4. Start the alert Scheduler as a background worker
5. Serve the §6 HTTP surface until SIGINT/SIGTERM`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "groundedcore.yaml", "path to YAML/JSON5 configuration file")
	return cmd
}

// deps is the fully wired dependency graph one HTTP request's handlers
// read from. Grounded on the teacher's gateway struct embedding every
// channel/provider it drives (internal/gateway/gateway.go), narrowed here
// to the components spec.md names.
type deps struct {
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	runtime  *dialog.Runtime
	toolReg  *tools.Registry
	toolExec *tools.Executor
	traces   trace.Store
	replayer *trace.Replayer
	sessions sessionmemory.Store
	policies *controlplane.MemoryPolicyStore
	releases *controlplane.MemoryReleaseStore
	experiments *controlplane.MemoryExperimentStore
	evaluator *alerts.Evaluator
	events    *alerts.MemoryEventStore
	silences  *alerts.MemorySilenceStore
	scheduler *alerts.Scheduler
	scopes    *scopeRegistry
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:     cfg.Observability.Logging.Level,
		Format:    cfg.Observability.Logging.Format,
		AddSource: cfg.Observability.Logging.AddSource,
	})
	metrics := observability.NewMetrics()

	d, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	_ = metrics
	d.metrics = metrics

	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()
	if cfg.Alerts.Enabled {
		go func() {
			if err := d.scheduler.Start(schedCtx, cfg.Alerts.Schedule); err != nil {
				logger.Error(schedCtx, "alert scheduler stopped", "error", err)
			}
		}()
	}

	mux := newMux(d)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	server := &http.Server{Addr: addr, Handler: mux}

	serveErrs := make(chan error, 1)
	go func() {
		logger.Info(ctx, "groundedcore listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrs <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info(ctx, "shutting down")
	case err := <-serveErrs:
		return fmt.Errorf("serve: %w", err)
	}

	cancelSched()
	d.scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// wire builds every component graph edge spec.md §2's control-flow diagram
// describes, bottom-up: stores first, then the composites that read them.
func wire(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*deps, error) {
	memCache := cache.NewMemoryCache(cfg.Cache.MaxSize)

	evidenceStore := evidence.NewMemoryStore()
	vectorIndex := evidence.NewMemoryVectorIndex(cfg.VectorIndex.Dimension)
	if cfg.VectorIndex.Backend == "qdrant" {
		_ = evidence.NewQdrantClient(cfg.VectorIndex.QdrantURL, cfg.VectorIndex.Collection, cfg.VectorIndex.Dimension)
	}
	retriever := evidence.NewRetriever(evidenceStore, vectorIndex, nil)

	sessions := sessionmemory.NewMemoryStore(cfg.SessionMemory.MaxMessages, cfg.SessionMemory.MaxChars, 0)
	personas := personastore.NewMemoryStore()

	minCitations := cfg.Gate.MinCitationsForFact
	if minCitations <= 0 {
		minCitations = gate.MinCitationsForFact
	}
	policies := controlplane.NewMemoryPolicyStore(func(name string) (map[string]any, error) {
		switch name {
		case alerts.PolicyNameAlertRules:
			return alerts.DefaultRuleSetContent()
		case evidenceGatePolicyName:
			return map[string]any{"min_citations_for_fact": minCitations}, nil
		default:
			return nil, fmt.Errorf("wire: no seed content for policy %q", name)
		}
	})
	releases := controlplane.NewMemoryReleaseStore()
	experiments := controlplane.NewMemoryExperimentStore()

	siteMaps := tools.NewMemorySiteMapStore()
	eventLog := tools.NewMemoryEventLog()
	feedback := tools.NewMemoryFeedbackStore()

	toolReg := tools.NewRegistry()
	var traceStore trace.Store
	var pgStore *trace.PostgresStore
	if cfg.Database.Driver == "postgres" && cfg.Database.URL != "" {
		ps, err := trace.NewPostgresStore(ctx, trace.PostgresConfig{
			DSN:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxConnections,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectTimeout:  10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("wire: trace postgres store: %w", err)
		}
		pgStore = ps
		traceStore = ps
	} else {
		traceStore = trace.NewMemoryStore()
	}

	toolExec := tools.NewExecutor(toolReg, func(record domain.TraceRecord) {
		_ = traceStore.Upsert(context.Background(), record)
	})
	tools.RegisterBuiltins(toolReg, tools.Deps{
		Personas:  personas,
		Evidence:  evidenceStore,
		Retriever: retriever,
		SiteMaps:  siteMaps,
		Events:    eventLog,
		Feedback:  feedback,
	})
	toolClient := toolclient.New(toolExec, memCache)

	llmChain, err := buildProviderChain(ctx, cfg)
	if err != nil {
		return nil, err
	}
	dispatcher := llmprovider.NewDispatcher(llmChain, func(llmprovider.AuditRecord) {})

	classifier := gate.NewRuleClassifier()
	g := gate.New(classifier)
	if cfg.Gate.MinCitationsForFact > 0 {
		g.MinCitationsForFact = cfg.Gate.MinCitationsForFact
	}

	runtime := dialog.New(toolClient, dispatcher, sessions, g, traceStore, logger)

	replayer := trace.NewReplayer(traceStore, evidenceStore, sessions)

	traceMetrics := alerts.NewTraceMetrics(traceListerFunc(traceStore), feedback)
	events := alerts.NewMemoryEventStore()
	silences := alerts.NewMemorySilenceStore()
	evaluator := alerts.NewEvaluator(policies, traceMetrics, events, silences)
	evaluator.Releases = releases
	evaluator.Logger = logger

	scopes := newScopeRegistry()
	scheduler := alerts.NewScheduler(evaluator, scopes, logger)

	_ = pgStore

	return &deps{
		cfg:         cfg,
		logger:      logger,
		runtime:     runtime,
		toolReg:     toolReg,
		toolExec:    toolExec,
		traces:      traceStore,
		replayer:    replayer,
		sessions:    sessions,
		policies:    policies,
		releases:    releases,
		experiments: experiments,
		evaluator:   evaluator,
		events:      events,
		silences:    silences,
		scheduler:   scheduler,
		scopes:      scopes,
	}, nil
}

// traceListerFunc adapts a trace.Store down to alerts.TraceLister.
func traceListerFunc(s trace.Store) alerts.TraceLister { return traceListerAdapter{s} }

type traceListerAdapter struct{ store trace.Store }

func (a traceListerAdapter) List(ctx context.Context, filter domain.TraceFilter) ([]domain.TraceRecord, error) {
	return a.store.List(ctx, filter)
}

func buildProviderChain(ctx context.Context, cfg *config.Config) ([]llmprovider.Provider, error) {
	var chain []llmprovider.Provider

	byName := map[string]func() (llmprovider.Provider, error){
		"anthropic": func() (llmprovider.Provider, error) {
			return llmprovider.NewAnthropicProvider(llmprovider.AnthropicConfig{
				APIKey:       cfg.LLM.Anthropic.APIKey,
				BaseURL:      cfg.LLM.Anthropic.BaseURL,
				DefaultModel: cfg.LLM.Anthropic.DefaultModel,
			})
		},
		"openai": func() (llmprovider.Provider, error) {
			return llmprovider.NewOpenAIProvider(llmprovider.OpenAIConfig{
				APIKey:       cfg.LLM.OpenAI.APIKey,
				BaseURL:      cfg.LLM.OpenAI.BaseURL,
				DefaultModel: cfg.LLM.OpenAI.DefaultModel,
			})
		},
		"bedrock": func() (llmprovider.Provider, error) {
			return llmprovider.NewBedrockProvider(ctx, llmprovider.BedrockConfig{
				Region:          cfg.LLM.Bedrock.Region,
				AccessKeyID:     cfg.LLM.Bedrock.AccessKeyID,
				SecretAccessKey: cfg.LLM.Bedrock.SecretAccessKey,
				SessionToken:    cfg.LLM.Bedrock.SessionToken,
				DefaultModel:    cfg.LLM.Bedrock.DefaultModel,
			})
		},
	}

	order := append([]string{cfg.LLM.DefaultProvider}, cfg.LLM.FallbackChain...)
	seen := map[string]bool{}
	for _, name := range order {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		build, ok := byName[name]
		if !ok {
			continue
		}
		provider, err := build()
		if err != nil {
			return nil, fmt.Errorf("wire: build %s provider: %w", name, err)
		}
		chain = append(chain, provider)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("wire: no usable LLM provider configured")
	}
	return chain, nil
}

// scopeRegistry tracks every (tenant, site) pair observed on the request
// path, so the alert Scheduler (C11) has something to iterate without a
// dedicated tenant directory service (out of scope per spec.md §1).
type scopeRegistry struct {
	mu     sync.Mutex
	scopes map[domain.Scope]struct{}
}

func newScopeRegistry() *scopeRegistry {
	return &scopeRegistry{scopes: make(map[domain.Scope]struct{})}
}

func (r *scopeRegistry) observe(scope domain.Scope) {
	if !scope.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes[scope] = struct{}{}
}

func (r *scopeRegistry) ListScopes(_ context.Context) ([]domain.Scope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Scope, 0, len(r.scopes))
	for s := range r.scopes {
		out = append(out, s)
	}
	return out, nil
}
