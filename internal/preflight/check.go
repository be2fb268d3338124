package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Aman-CERP/docrag/internal/catalog"
	"github.com/Aman-CERP/docrag/internal/config"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Prober is the part of an embedding provider the checks need.
type Prober interface {
	Available(ctx context.Context) bool
	ModelName() string
	Dimensions() int
}

// Target is what RunAll inspects.
type Target struct {
	Config *config.Config
	// Provider names the embedder in messages ("ollama", "azure", ...).
	Provider string
	// Embedder is nil when it could not be constructed; EmbedderErr then
	// carries the reason.
	Embedder    Prober
	EmbedderErr error
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against t. Checks that depend on a valid
// configuration are skipped when it is invalid.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	results := []CheckResult{c.CheckConfig(t.Config)}
	if results[0].Status == StatusFail {
		return results
	}

	results = append(results,
		c.CheckWritePermissions(t.Config.Cache.Dir),
		c.CheckDiskSpace(t.Config.Cache.Dir),
	)
	if t.Embedder == nil {
		results = append(results, CheckResult{
			Name:     "embedder",
			Required: true,
			Status:   StatusFail,
			Message:  errorMessage(t.EmbedderErr, "no embedding provider configured"),
			Details:  "Set embeddings.provider or start Ollama (`ollama serve`)",
		})
	} else {
		results = append(results, c.CheckEmbedder(ctx, t.Provider, t.Embedder))
	}
	results = append(results, c.CheckCatalog(ctx, t.Config.Cache.CatalogPath))
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "docrag doctor")
	_, _ = fmt.Fprintln(c.output, "=============")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			_, _ = fmt.Fprintf(c.output, "       %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckConfig validates the effective configuration.
func (c *Checker) CheckConfig(cfg *config.Config) CheckResult {
	result := CheckResult{Name: "config", Required: true}
	if cfg == nil {
		result.Status = StatusFail
		result.Message = "no configuration loaded"
		return result
	}
	if err := cfg.Validate(); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = "Run `docrag config` to see the effective configuration"
		return result
	}
	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckWritePermissions checks that the cache directory can be created and
// written to.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "cache_writable",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckCatalog opens the catalog, which runs its integrity check, and
// counts the documents in it. A broken catalog only warns: ingest and query
// keep working without it.
func (c *Checker) CheckCatalog(ctx context.Context, path string) CheckResult {
	result := CheckResult{Name: "catalog"}

	cat, err := catalog.Open(path)
	if err != nil {
		result.Status = StatusWarn
		result.Message = err.Error()
		return result
	}
	defer func() { _ = cat.Close() }()

	records, err := cat.List(ctx)
	if err != nil {
		result.Status = StatusWarn
		result.Message = err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d documents", len(records))
	result.Details = path
	return result
}

func errorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}
