// Command taskrunner is the minimal operational surface around the chain
// engine: it loads chain templates and ambient configuration from disk,
// serves them from an internal/store.Store, and fires chain runs on a
// cron schedule, on NATS events, or via a single synchronous HTTP trigger.
// Grounded on the teacher's services/orchestrator/main.go (slog+otel init,
// signal-driven graceful shutdown, a small http.ServeMux).
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cloudchain/taskengine/internal/config"
	"github.com/cloudchain/taskengine/internal/logging"
	"github.com/cloudchain/taskengine/internal/otelinit"
	"github.com/cloudchain/taskengine/internal/schedule"
	"github.com/cloudchain/taskengine/internal/silo"
	"github.com/cloudchain/taskengine/internal/store"
	"github.com/cloudchain/taskengine/internal/trigger"
	"github.com/nats-io/nats.go"

	_ "github.com/cloudchain/taskengine/internal/task/kinds"
)

func main() {
	logging.Init()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerProviders, err := otelinit.InitTracer(ctx)
	if err != nil {
		logging.Get().Error("otel tracer init failed", "error", err)
		os.Exit(1)
	}
	metrics, err := otelinit.InitMetrics(ctx)
	if err != nil {
		logging.Get().Error("otel metrics init failed", "error", err)
		os.Exit(1)
	}

	env := config.NewEnvironment()
	if path := os.Getenv("TASKENGINE_ENV_FILE"); path != "" {
		if err := env.Load(path); err != nil {
			logging.Get().Error("loading environment file failed", "path", path, "error", err)
			os.Exit(1)
		}
	}

	silos := config.NewSiloCatalog()
	if path := os.Getenv("TASKENGINE_SILO_CATALOG"); path != "" {
		if err := silos.LoadCatalogFile(path); err != nil {
			logging.Get().Error("loading silo catalog failed", "path", path, "error", err)
			os.Exit(1)
		}
	}

	var statusSilo *silo.Adapter
	if _, ok := silos.Get("harvest-tasks"); ok {
		client, err := silos.RedisClient("harvest-tasks")
		if err != nil {
			logging.Get().Error("constructing status silo client failed", "error", err)
			os.Exit(1)
		}
		statusSilo = silo.New(client)
	}

	dbPath := os.Getenv("TASKENGINE_DB_PATH")
	if dbPath == "" {
		dbPath = "taskengine.db"
	}
	st, err := store.Open(dbPath)
	if err != nil {
		logging.Get().Error("opening store failed", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if dir := os.Getenv("TASKENGINE_TEMPLATE_DIR"); dir != "" {
		if err := loadTemplateDir(st, dir); err != nil {
			logging.Get().Error("loading template directory failed", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	deps := chainDeps{env: env}
	if statusSilo != nil {
		deps.silo = statusSilo
	}
	runner := newChainRunner(st, deps)

	scheduler := schedule.New(runner, st)
	scheduler.Start()
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = scheduler.Stop(stopCtx)
	}()
	if err := scheduler.RestoreSchedules(); err != nil {
		logging.Get().Warn("restoring schedules failed", "error", err)
	}

	if url := os.Getenv("TASKENGINE_NATS_URL"); url != "" {
		conn, err := nats.Connect(url)
		if err != nil {
			logging.Get().Error("connecting to NATS failed", "url", url, "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		natsSub := trigger.New(conn, runner)
		for _, binding := range loadTriggerBindings() {
			if err := natsSub.Bind(binding); err != nil {
				logging.Get().Error("binding trigger failed", "subject", binding.Subject, "error", err)
			}
		}
		defer natsSub.Close()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/chains", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(st.ListTemplates())
	})
	mux.HandleFunc("/v1/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		name := r.URL.Query().Get("chain")
		if name == "" {
			http.Error(w, "chain query parameter required", http.StatusBadRequest)
			return
		}
		if err := runner.RunChain(r.Context(), name); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("completed"))
	})

	addr := os.Getenv("TASKENGINE_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Get().Error("http server error", "error", err)
			cancel()
		}
	}()

	logging.Get().Info("taskrunner started", "addr", addr)
	<-ctx.Done()
	logging.Get().Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = tracerProviders.Shutdown(shutdownCtx)
	_ = metrics.Shutdown(shutdownCtx)

	logging.Get().Info("shutdown complete")
}

// loadTemplateDir registers every .yaml/.yml/.json file in dir as a chain
// template, keyed by its chain kind's configured name.
func loadTemplateDir(st *store.Store, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		isYAML := isYAMLPath(name)
		if !isYAML && !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}

		kind, document, err := parseTemplateDocument(data, isYAML)
		if err != nil {
			return err
		}

		chainName, _ := document["name"].(string)
		if chainName == "" {
			chainName = kind
		}

		if err := st.PutTemplate(store.Template{Name: chainName, Kind: kind, Document: document}); err != nil {
			return err
		}
		logging.Get().Info("template registered", "name", chainName, "kind", kind)
	}
	return nil
}

// loadTriggerBindings reads TASKENGINE_TRIGGER_BINDINGS, a comma-separated
// list of "subject=chainName" pairs, since trigger bindings are few enough
// per deployment not to warrant their own file format.
func loadTriggerBindings() []trigger.Binding {
	raw := os.Getenv("TASKENGINE_TRIGGER_BINDINGS")
	if raw == "" {
		return nil
	}

	var bindings []trigger.Binding
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		bindings = append(bindings, trigger.Binding{Subject: parts[0], ChainName: parts[1]})
	}
	return bindings
}
