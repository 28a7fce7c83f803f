package toolchat

import (
	"log/slog"
	"time"
)

// Defaults match the reference deployment this package talks to: a locally
// hosted OpenAI-compatible server with generous request budgets.
const (
	DefaultTimeout       = 300 * time.Second
	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 2048
	DefaultMaxRetries    = 3
	DefaultMaxIterations = 5
	DefaultBackoffUnit   = time.Second
)

type clientOptions struct {
	timeout time.Duration
	apiKey  string
	logger  *slog.Logger
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithTimeout sets the per-call network budget (default 300s). It covers the
// whole call, including consumption of a streamed body.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

// WithAPIKey sets a bearer token sent with every request. The token is passed
// through as-is; this package designs no auth scheme of its own.
func WithAPIKey(key string) ClientOption {
	return func(o *clientOptions) { o.apiKey = key }
}

// WithClientLogger sets the client's logger (default slog.Default()).
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

type registryOptions struct {
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

// WithRegistryLogger sets the registry's logger (default slog.Default()).
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(o *registryOptions) { o.logger = logger }
}

type executorOptions struct {
	maxRetries    int
	backoffUnit   time.Duration
	recoverPanics bool
	logger        *slog.Logger
}

func defaultExecutorOptions() executorOptions {
	return executorOptions{
		maxRetries:    DefaultMaxRetries,
		backoffUnit:   DefaultBackoffUnit,
		recoverPanics: true,
		logger:        slog.Default(),
	}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorOptions)

// WithMaxRetries sets the handler attempt ceiling per call (default 3).
// Values below 1 are clamped to 1.
func WithMaxRetries(n int) ExecutorOption {
	return func(o *executorOptions) {
		if n < 1 {
			n = 1
		}
		o.maxRetries = n
	}
}

// WithBackoffUnit sets the base backoff sleep (default 1s). The sleep after
// failed attempt n is unit << n, scoped to the one call being retried.
func WithBackoffUnit(d time.Duration) ExecutorOption {
	return func(o *executorOptions) { o.backoffUnit = d }
}

// WithRecoverPanics controls whether a panicking handler counts as a failed
// attempt instead of crashing the conversation (default true).
func WithRecoverPanics(enable bool) ExecutorOption {
	return func(o *executorOptions) { o.recoverPanics = enable }
}

// WithExecutorLogger sets the executor's logger (default slog.Default()).
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(o *executorOptions) { o.logger = logger }
}

type agentOptions struct {
	executor *Executor
	logger   *slog.Logger
}

// AgentOption configures an Agent.
type AgentOption func(*agentOptions)

// WithExecutor sets the executor used for tool calls (default: a fresh
// NewExecutor over the agent's registry).
func WithExecutor(e *Executor) AgentOption {
	return func(o *agentOptions) { o.executor = e }
}

// WithAgentLogger sets the agent's logger (default slog.Default()).
func WithAgentLogger(logger *slog.Logger) AgentOption {
	return func(o *agentOptions) { o.logger = logger }
}

type chatOptions struct {
	system        string
	history       []Message
	tools         []ToolDescriptor
	toolChoice    ToolChoice
	maxIterations int
	temperature   float64
	maxTokens     int
}

func defaultChatOptions() chatOptions {
	return chatOptions{
		toolChoice:    ToolChoiceAuto,
		maxIterations: DefaultMaxIterations,
		temperature:   DefaultTemperature,
		maxTokens:     DefaultMaxTokens,
	}
}

// ChatOption configures one ChatWithTools call.
type ChatOption func(*chatOptions)

// WithSystem prepends a system prompt to the conversation.
func WithSystem(prompt string) ChatOption {
	return func(o *chatOptions) { o.system = prompt }
}

// WithHistory seeds the conversation with prior turns, inserted between the
// system prompt (if any) and the new user message.
func WithHistory(history []Message) ChatOption {
	return func(o *chatOptions) { o.history = history }
}

// WithTools overrides the tool schemas offered to the model (default: the
// registry's descriptors for this agent).
func WithTools(tools []ToolDescriptor) ChatOption {
	return func(o *chatOptions) { o.tools = tools }
}

// WithToolChoice sets the tool-choice policy (default auto).
func WithToolChoice(tc ToolChoice) ChatOption {
	return func(o *chatOptions) { o.toolChoice = tc }
}

// WithMaxIterations sets the send-operation ceiling per conversation
// (default 5). Values below 1 are clamped to 1.
func WithMaxIterations(n int) ChatOption {
	return func(o *chatOptions) {
		if n < 1 {
			n = 1
		}
		o.maxIterations = n
	}
}

// WithTemperature sets the sampling temperature (default 0.7).
func WithTemperature(t float64) ChatOption {
	return func(o *chatOptions) { o.temperature = t }
}

// WithMaxTokens sets the response size cap (default 2048).
func WithMaxTokens(n int) ChatOption {
	return func(o *chatOptions) { o.maxTokens = n }
}
