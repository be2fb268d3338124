// Package preflight checks that docrag can ingest and query before it is
// asked to: the configuration is valid, the cache directory is writable and
// has room, the embedding provider answers, and the catalog opens cleanly.
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, preflight.Target{Config: cfg, Embedder: e})
//	checker.PrintResults(results)
//	if checker.HasCriticalFailures(results) {
//	    // exit non-zero
//	}
package preflight
