package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inkwell-ai/recall/pkg/embedding"
	"github.com/inkwell-ai/recall/pkg/embedding/openai"
	"github.com/inkwell-ai/recall/pkg/llmcache"
	"github.com/inkwell-ai/recall/pkg/metrics"
	"github.com/inkwell-ai/recall/pkg/pricing"
	"github.com/inkwell-ai/recall/pkg/store"
	"github.com/inkwell-ai/recall/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cache sidecar HTTP server",
	Long: `Starts an HTTP server that exposes the response cache to non-Go
clients. Callers look up before generating and store afterwards.

Example:
  recall serve --port 8080

The server exposes:
  POST /v1/lookup  - Fingerprint the request and return any cached response
  POST /v1/store   - Store a completed generation
  GET  /v1/stats   - Usage counters (hits, misses, dollars)
  GET  /health     - Health check
  GET  /metrics    - Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "HTTP server port")
	serveCmd.Flags().String("host", "0.0.0.0", "HTTP server host")

	// Bind to viper
	_ = viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("serve.host", serveCmd.Flags().Lookup("host"))
}

// Server holds the HTTP server state.
type Server struct {
	cache   *llmcache.Cache
	metrics *metrics.Metrics
	backend string
}

// LookupRequest is the JSON request body for /v1/lookup and /v1/store.
type LookupRequest struct {
	Prompt      string            `json:"prompt"`
	Provider    string            `json:"provider,omitempty"`
	Model       string            `json:"model,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	TopP        float64           `json:"top_p,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`

	// Store-only fields.
	Response string  `json:"response,omitempty"`
	Cost     float64 `json:"cost,omitempty"`
}

// LookupResponse is the JSON response for /v1/lookup.
type LookupResponse struct {
	Hit      bool   `json:"hit"`
	Response string `json:"response,omitempty"`
}

func (r LookupRequest) params() llmcache.Params {
	return llmcache.Params{
		Provider:    r.Provider,
		Model:       r.Model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
		TopP:        r.TopP,
		Extra:       r.Extra,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	// Tracing
	tp, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Tracing.Enabled,
		Exporter:    cfg.Telemetry.Tracing.Exporter,
		Endpoint:    cfg.Telemetry.Tracing.Endpoint,
		SampleRate:  cfg.Telemetry.Tracing.SampleRate,
		ServiceName: "recall",
		Insecure:    cfg.Telemetry.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	m := metrics.New()

	// Backends
	var st store.Store
	if cfg.Store.Backend == "redis" {
		// Keep serving from an in-process store when redis is down,
		// whether it fails at startup or later.
		local := store.NewMemoryStore(store.Config{
			MaxEntries: cfg.Cache.MaxEntries,
			TTL:        cfg.Cache.TTL,
		})
		fb := store.OpenFallback(ctx, func(ctx context.Context) (store.Store, error) {
			return openStore(ctx, cfg)
		}, local, cfg.Store.Redis.OpTimeout, logger)
		fb.OnDegrade = func(op string) { m.RecordDegraded(cfg.Store.Backend) }
		st = fb
	} else if st, err = openStore(ctx, cfg); err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	ix, err := openIndex(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open semantic index: %w", err)
	}

	var embedder embedding.Provider
	if cfg.Semantic.Enabled {
		embedder, err = openai.NewClient(openai.Config{
			APIKey: cfg.Embedding.APIKey,
			Model:  cfg.Embedding.Model,
		})
		if err != nil {
			return fmt.Errorf("failed to create embedding provider: %w", err)
		}
	}

	prices := pricing.DefaultTable()
	for model, rate := range cfg.Pricing.Rates {
		prices[model] = rate
	}

	opts := []llmcache.Option{
		llmcache.WithStore(st),
		llmcache.WithLogger(logger),
		llmcache.WithMetrics(m),
		llmcache.WithPricing(prices),
	}
	if ix != nil && embedder != nil {
		opts = append(opts, llmcache.WithIndex(ix), llmcache.WithEmbedder(embedder))
	}

	cache, err := llmcache.New(llmcache.Config{
		MaxEntries:          cfg.Cache.MaxEntries,
		TTL:                 cfg.Cache.TTL,
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	server := &Server{cache: cache, metrics: m, backend: cfg.Store.Backend}

	// Setup routes
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/lookup", server.handleLookup)
	mux.HandleFunc("/v1/store", server.handleStore)
	mux.HandleFunc("/v1/stats", server.handleStats)
	mux.HandleFunc("/health", server.handleHealth)
	mux.Handle("/metrics", m.Handler())

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Keep the store size gauge current while serving.
	gaugeStop := make(chan struct{})
	defer close(gaugeStop)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := st.Len(ctx); err == nil {
					m.SetStoreEntries(int(n))
				}
			case <-gaugeStop:
				return
			}
		}
	}()

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Fprintln(os.Stderr, "\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Printf("Recall cache server starting on %s\n", addr)
	fmt.Printf("  Store: %s\n", cfg.Store.Backend)
	fmt.Printf("  Semantic: %v\n", cfg.Semantic.Enabled)
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Printf("  POST http://%s/v1/lookup\n", addr)
	fmt.Printf("  POST http://%s/v1/store\n", addr)
	fmt.Printf("  GET  http://%s/v1/stats\n", addr)
	fmt.Println()

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	fmt.Println("Server stopped")
	return nil
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "'prompt' is required", http.StatusBadRequest)
		return
	}

	p := req.params()
	ctx, span := telemetry.StartLookup(r.Context(), llmcache.Fingerprint(req.Prompt, p))
	defer span.End()

	text, ok := s.cache.Get(ctx, req.Prompt, p)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(LookupResponse{Hit: ok, Response: text})
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" || req.Response == "" {
		http.Error(w, "'prompt' and 'response' are required", http.StatusBadRequest)
		return
	}

	ctx, span := telemetry.StartStoreOp(r.Context(), "put", s.backend)
	defer span.End()

	s.cache.Set(ctx, req.Prompt, req.params(), req.Response, req.Cost)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.cache.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"total_requests": stats.TotalRequests,
		"exact_hits":     stats.ExactHits,
		"semantic_hits":  stats.SemanticHits,
		"misses":         stats.Misses,
		"hit_rate":       stats.HitRate(),
		"cost_saved":     stats.CostSaved,
		"cost_spent":     stats.CostSpent,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
