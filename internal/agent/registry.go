package agent

import (
	"context"
	"log/slog"
	"sync"

	"reelgate/internal/config"
	"reelgate/internal/llm"
	"reelgate/internal/logging"
	"reelgate/internal/stage"
)

// Registry maps each stage to exactly one Agent.
type Registry struct {
	mu     sync.RWMutex
	agents map[stage.Name]Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[stage.Name]Agent)}
}

// NewRegistryFromConfig wires the LLMAgent for stages set to "llm", a
// CommandAgent for every other stage with a configured command, and the
// TemplateAgent for the rest.
func NewRegistryFromConfig(cfg *config.Config, logger *slog.Logger) *Registry {
	logger = logging.NewComponentLogger(logger, "agents")
	template := &TemplateAgent{VideosDir: cfg.Paths.VideosDir}
	var client *llm.Client
	reg := NewRegistry()
	for _, name := range stage.Order() {
		argv := cfg.Agents.Command(string(name))
		if len(argv) == 0 {
			reg.Set(name, template)
			continue
		}
		if cfg.Agents.UsesLLM(string(name)) {
			if client == nil {
				client = llm.NewClient(llm.Config{
					BaseURL:        cfg.LLM.BaseURL,
					Model:          cfg.LLM.Model,
					APIKey:         cfg.LLM.APIKey,
					TimeoutSeconds: cfg.LLM.TimeoutSeconds,
				})
			}
			reg.Set(name, &LLMAgent{Stage: name, Client: client, Label: cfg.LLM.Model})
			logger.Debug("llm generator configured",
				logging.String(logging.FieldStage, string(name)),
				logging.String("model", cfg.LLM.Model),
			)
			continue
		}
		reg.Set(name, &CommandAgent{Stage: name, Argv: argv})
		logger.Debug("external generator configured",
			logging.String(logging.FieldStage, string(name)),
			logging.String("command", argv[0]),
		)
	}
	return reg
}

// Set registers agent for name, replacing any previous agent.
func (r *Registry) Set(name stage.Name, agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[name] = agent
}

// Get returns the agent for name.
func (r *Registry) Get(name stage.Name) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[name]
	return agent, ok && agent != nil
}

// Health reports readiness per stage in pipeline order. Stages without an
// agent are unhealthy.
func (r *Registry) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(stage.Order()))
	for _, name := range stage.Order() {
		agent, ok := r.Get(name)
		if !ok {
			out = append(out, stage.Unhealthy(string(name), "no generator registered"))
			continue
		}
		health := stage.Healthy(string(name))
		if reporter, ok := agent.(HealthReporter); ok {
			health = reporter.Health(ctx)
			health.Name = string(name)
		}
		out = append(out, health)
	}
	return out
}
