package preflight

import (
	"context"
	"fmt"
	"time"
)

// embedderProbeTimeout bounds the reachability probe.
const embedderProbeTimeout = 10 * time.Second

// CheckEmbedder probes the embedding provider. Ingest cannot proceed
// without it, so the check is required.
func (c *Checker) CheckEmbedder(ctx context.Context, provider string, e Prober) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: true,
	}
	desc := fmt.Sprintf("%s %s (%d dims)", provider, e.ModelName(), e.Dimensions())

	ctx, cancel := context.WithTimeout(ctx, embedderProbeTimeout)
	defer cancel()

	if !e.Available(ctx) {
		result.Status = StatusFail
		result.Message = desc + " is not reachable"
		result.Details = "Check the provider endpoint and credentials, or set embeddings.provider: static for offline use"
		return result
	}
	result.Status = StatusPass
	result.Message = desc
	return result
}
