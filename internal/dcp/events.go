package dcp

// Stage labels reported through the Sink, in pipeline order.
const (
	StageStart               = "start"
	StageDarkChannel         = "dark_channel"
	StageAtmosphericLight    = "atmospheric_light"
	StageInitialTransmission = "initial_transmission"
	StageRefinement          = "refinement"
	StageRecovery            = "recovery"
	StageDone                = "done"
)

// Artifact is a named intermediate produced by a pipeline stage. Exactly
// one of Gray and Image is non-nil, depending on whether the stage output
// is a single-channel map or a color image.
type Artifact struct {
	// Name identifies the artifact: "dark_channel",
	// "initial_transmission", "refined_transmission_<method>" or
	// "dehazed_<method>".
	Name string

	Gray  *Gray
	Image *Image
}

// Sink receives the ordered stream of stage-completion events for one
// pipeline run. The pipeline calls it synchronously after each stage and
// never polls, so implementations must return promptly; events are
// infrequent (one per stage) and carry no backpressure contract.
//
// Progress carries a human-readable status message. Artifact additionally
// carries a named intermediate result. Warnings (solver non-convergence,
// refinement-method substitution) arrive as Progress events on the stage
// they occurred in.
type Sink interface {
	Progress(stage, message string)
	Artifact(stage, message string, a Artifact)
}

// NopSink discards all events. Useful for batch callers that only want
// the final Result.
type NopSink struct{}

// Progress implements Sink.
func (NopSink) Progress(stage, message string) {}

// Artifact implements Sink.
func (NopSink) Artifact(stage, message string, a Artifact) {}
