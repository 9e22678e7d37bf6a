// Package metrics provides application-level counters using stdlib expvar.
// Counters are automatically exported on the /debug/vars HTTP endpoint
// when expvar's handler is mounted by the API server.
package metrics

import "expvar"

// Operation counters.
var (
	MergeTotal        = expvar.NewInt("pathcurate_merge_total")
	MergeFailed       = expvar.NewInt("pathcurate_merge_failed_total")
	ReactionsAdded    = expvar.NewInt("pathcurate_reactions_added_total")
	MetabolitesAdded  = expvar.NewInt("pathcurate_metabolites_added_total")
	DuplicatesSkipped = expvar.NewInt("pathcurate_duplicates_skipped_total")
	IdentityConflicts = expvar.NewInt("pathcurate_identity_conflicts_total")
	SinksCreated      = expvar.NewInt("pathcurate_sinks_created_total")
	SinksRemoved      = expvar.NewInt("pathcurate_sinks_removed_total")
	ParseErrors       = expvar.NewInt("pathcurate_parse_errors_total")
	FetchTotal        = expvar.NewInt("pathcurate_fetch_total")
	CacheHits         = expvar.NewInt("pathcurate_cache_hits_total")
	CacheMisses       = expvar.NewInt("pathcurate_cache_misses_total")
	LifecyclePruned   = expvar.NewInt("pathcurate_lifecycle_pruned_total")
	CurationWarnings  = expvar.NewInt("pathcurate_curation_warnings_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
