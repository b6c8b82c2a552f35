package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// Config adds pulse-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	ProducerAPIKey        string
	CycleInterval         time.Duration
	MaxBatchSize          int
	QueueCapacity         int
	DeferredCapacity      int
	DeferredDrainInterval time.Duration
	ActionTimeout         time.Duration
	TriggerTTL            time.Duration
	ClaudeAPIKey          string
	ClaudeModel           string
	AdvisorTimeout        time.Duration
	DatabaseURL           string
	RedisAddr             string
	RecentTTL             time.Duration
	RecentPerLead         int
	SlackWebhookURL       string
	CRMBaseURL            string
	CRMAPIKey             string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests")
	fs.StringVar(&c.ProducerAPIKey, "producer-api-key", "", "optional X-Api-Key accepted as alternative credential for signal producers")
	fs.DurationVar(&c.CycleInterval, "cycle-interval", 5*time.Second, "interval between analysis cycles (1s..10m)")
	fs.IntVar(&c.MaxBatchSize, "max-batch-size", 100, "maximum signals collected per type per cycle (1..10000)")
	fs.IntVar(&c.QueueCapacity, "queue-capacity", 1000, "per-signal-type ingestion queue capacity")
	fs.IntVar(&c.DeferredCapacity, "deferred-capacity", 1000, "capacity of the deferred trigger queue")
	fs.DurationVar(&c.DeferredDrainInterval, "deferred-drain-interval", 100*time.Millisecond, "pace at which deferred triggers are drained (1ms..10s)")
	fs.DurationVar(&c.ActionTimeout, "action-timeout", 10*time.Second, "timeout for a single trigger delivery attempt")
	fs.DurationVar(&c.TriggerTTL, "trigger-ttl", time.Hour, "lifetime of a generated trigger before it expires")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude LLM provider (empty = advisory annotations disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-3-5-haiku-latest", "Claude model to use for advisory annotations")
	fs.DurationVar(&c.AdvisorTimeout, "advisor-timeout", 3*time.Second, "timeout for one advisory LLM call (must be shorter than the cycle interval)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory trigger store)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis address for the recent-signal store (empty = in-memory store)")
	fs.DurationVar(&c.RecentTTL, "recent-ttl", 24*time.Hour, "retention horizon for recent signals per lead")
	fs.IntVar(&c.RecentPerLead, "recent-per-lead", 200, "maximum recent signals retained per lead (1..10000)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for alert and escalation triggers")
	fs.StringVar(&c.CRMBaseURL, "crm-base-url", "", "CRM API base URL for automated trigger actions")
	fs.StringVar(&c.CRMAPIKey, "crm-api-key", "", "CRM API bearer token")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// API token is required, the listener is never exposed unauthenticated
	if c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	// Cycle pacing
	if c.CycleInterval < time.Second || c.CycleInterval > 10*time.Minute {
		errs = append(errs, fmt.Errorf("invalid CYCLE_INTERVAL %s (must be 1s..10m)", c.CycleInterval))
	}
	if c.MaxBatchSize <= 0 || c.MaxBatchSize > 10000 {
		errs = append(errs, fmt.Errorf("invalid MAX_BATCH_SIZE %d (must be 1..10000)", c.MaxBatchSize))
	}
	if c.QueueCapacity <= 0 || c.QueueCapacity > 1000000 {
		errs = append(errs, fmt.Errorf("invalid QUEUE_CAPACITY %d (must be 1..1000000)", c.QueueCapacity))
	}

	// Trigger dispatch
	if c.DeferredCapacity <= 0 || c.DeferredCapacity > 1000000 {
		errs = append(errs, fmt.Errorf("invalid DEFERRED_CAPACITY %d (must be 1..1000000)", c.DeferredCapacity))
	}
	if c.DeferredDrainInterval < time.Millisecond || c.DeferredDrainInterval > 10*time.Second {
		errs = append(errs, fmt.Errorf("invalid DEFERRED_DRAIN_INTERVAL %s (must be 1ms..10s)", c.DeferredDrainInterval))
	}
	if c.ActionTimeout <= 0 || c.ActionTimeout > time.Minute {
		errs = append(errs, fmt.Errorf("invalid ACTION_TIMEOUT %s (must be positive and at most 1m)", c.ActionTimeout))
	}
	if c.TriggerTTL <= 0 {
		errs = append(errs, fmt.Errorf("invalid TRIGGER_TTL %s (must be positive)", c.TriggerTTL))
	}

	// Recent-signal retention
	if c.RecentTTL <= 0 {
		errs = append(errs, fmt.Errorf("invalid RECENT_TTL %s (must be positive)", c.RecentTTL))
	}
	if c.RecentPerLead <= 0 || c.RecentPerLead > 10000 {
		errs = append(errs, fmt.Errorf("invalid RECENT_PER_LEAD %d (must be 1..10000)", c.RecentPerLead))
	}

	// Advisory LLM is optional, but a key without a model is a misconfiguration
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}
	if c.AdvisorTimeout <= 0 || c.AdvisorTimeout > time.Minute {
		errs = append(errs, fmt.Errorf("invalid ADVISOR_TIMEOUT %s (must be positive and at most 1m)", c.AdvisorTimeout))
	}
	// The advisory call runs inside the cycle deadline, so it has to leave
	// room for the rest of the cycle.
	if c.AdvisorTimeout >= c.CycleInterval {
		errs = append(errs, fmt.Errorf("ADVISOR_TIMEOUT %s must be shorter than CYCLE_INTERVAL %s", c.AdvisorTimeout, c.CycleInterval))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
