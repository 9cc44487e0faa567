package analyses

// Mode tells callers where an analysis came from.
type Mode string

const (
	// ModeLive means both identification and diagnosis used real providers.
	ModeLive Mode = "live"
	// ModeSimulatedDiagnosis means identification was real but the health
	// assessment came from the offline simulator.
	ModeSimulatedDiagnosis Mode = "simulated_diagnosis"
	// ModeFallback means the pipeline failed and the canned demo analysis
	// was returned.
	ModeFallback Mode = "fallback"
	// ModeUnknown marks stored analyses recorded before the mode was kept.
	ModeUnknown Mode = "unknown"
)

// Result is the outcome of CompleteAnalysis. Cause holds the error that
// triggered the fallback, if any.
type Result struct {
	Analysis CompleteAnalysis
	Mode     Mode
	Cause    error
}

// Simulated reports whether any part of the analysis was fabricated.
func (r Result) Simulated() bool {
	return r.Mode != ModeLive
}
