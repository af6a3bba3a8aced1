package dcp

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
)

// recordingSink captures every event for ordering assertions.
type recordingSink struct {
	stages    []string
	messages  []string
	artifacts []string
}

func (s *recordingSink) Progress(stage, message string) {
	s.stages = append(s.stages, stage)
	s.messages = append(s.messages, message)
}

func (s *recordingSink) Artifact(stage, message string, a Artifact) {
	s.stages = append(s.stages, stage)
	s.messages = append(s.messages, message)
	s.artifacts = append(s.artifacts, a.Name)
}

func TestRun_GuidedFilterDefault(t *testing.T) {
	img := hazyTestImage(16, 12)
	cfg := smallConfig()

	res, err := Run(context.Background(), img, cfg, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.DarkChannel == nil || res.InitialTransmission == nil {
		t.Fatal("missing intermediate artifacts")
	}
	if len(res.Runs) != 1 || res.Runs[0].Method != MethodGuidedFilter {
		t.Fatalf("runs: got %+v, want one guided_filter result", res.Runs)
	}
	mr := res.Runs[0]
	if mr.Transmission == nil || mr.Radiance == nil {
		t.Fatal("guided filter result incomplete")
	}
	for i, v := range mr.Transmission.Pix {
		if v < 0 || v > 1 {
			t.Fatalf("refined transmission[%d] = %g outside [0,1]", i, v)
		}
	}
	for i, v := range mr.Radiance.Pix {
		if v < 0 || v > 1 {
			t.Fatalf("radiance[%d] = %g outside [0,1]", i, v)
		}
	}
}

func TestRun_EventOrder(t *testing.T) {
	img := hazyTestImage(12, 10)
	sink := &recordingSink{}

	if _, err := Run(context.Background(), img, smallConfig(), sink); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantStages := []string{
		StageStart, StageDarkChannel, StageAtmosphericLight,
		StageInitialTransmission, StageRefinement, StageRefinement,
		StageRecovery, StageDone,
	}
	if len(sink.stages) != len(wantStages) {
		t.Fatalf("stage count: got %d (%v), want %d", len(sink.stages), sink.stages, len(wantStages))
	}
	for i, want := range wantStages {
		if sink.stages[i] != want {
			t.Errorf("event %d: got stage %q, want %q", i, sink.stages[i], want)
		}
	}

	wantArtifacts := []string{
		"dark_channel", "initial_transmission",
		"refined_transmission_guided_filter", "dehazed_guided_filter",
	}
	if len(sink.artifacts) != len(wantArtifacts) {
		t.Fatalf("artifacts: got %v, want %v", sink.artifacts, wantArtifacts)
	}
	for i, want := range wantArtifacts {
		if sink.artifacts[i] != want {
			t.Errorf("artifact %d: got %q, want %q", i, sink.artifacts[i], want)
		}
	}
}

func TestRun_AllMethods(t *testing.T) {
	img := hazyTestImage(10, 8)
	cfg := smallConfig()
	cfg.Refinement.Method = MethodAll

	res, err := Run(context.Background(), img, cfg, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Runs) != 2 {
		t.Fatalf("runs: got %d, want 2", len(res.Runs))
	}
	if res.ByMethod(MethodGuidedFilter) == nil || res.ByMethod(MethodSoftMatting) == nil {
		t.Fatalf("missing method result: %+v", res.Runs)
	}
	if res.ByMethod(MethodSoftMatting).Solve == nil {
		t.Error("soft matting result is missing solver stats")
	}
}

func TestRun_UnknownMethodSubstituted(t *testing.T) {
	img := hazyTestImage(10, 8)
	cfg := smallConfig()
	cfg.Refinement.Method = "magic"
	sink := &recordingSink{}

	res, err := Run(context.Background(), img, cfg, sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Runs) != 1 || res.Runs[0].Method != MethodGuidedFilter {
		t.Fatalf("runs: got %+v, want guided_filter substitution", res.Runs)
	}

	warned := false
	for _, msg := range sink.messages {
		if len(msg) >= 7 && msg[:7] == "Warning" {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a substitution warning on the sink")
	}
}

func TestRun_Deterministic(t *testing.T) {
	img := hazyTestImage(14, 11)
	cfg := smallConfig()
	cfg.Refinement.Method = MethodAll

	a, err := Run(context.Background(), img, cfg, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := Run(context.Background(), img, cfg, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if a.AtmosphericLight != b.AtmosphericLight {
		t.Errorf("atmospheric light differs: %v vs %v", a.AtmosphericLight, b.AtmosphericLight)
	}
	for i := range a.Runs {
		for j := range a.Runs[i].Radiance.Pix {
			if a.Runs[i].Radiance.Pix[j] != b.Runs[i].Radiance.Pix[j] {
				t.Fatalf("method %s sample %d differs between identical runs",
					a.Runs[i].Method, j)
			}
		}
	}
}

func TestRun_Cancellation(t *testing.T) {
	img := hazyTestImage(10, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, img, smallConfig(), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestRun_RejectsInvalidConfig(t *testing.T) {
	img := hazyTestImage(8, 8)
	cfg := smallConfig()
	cfg.Algorithm.PatchSize = 4

	if _, err := Run(context.Background(), img, cfg, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("got %v, want ErrInvalidParameter", err)
	}
}

func TestRun_RejectsNonFiniteImage(t *testing.T) {
	img := hazyTestImage(8, 8)
	img.Pix[10] = math.NaN()

	if _, err := Run(context.Background(), img, smallConfig(), nil); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("got %v, want ErrInvalidImage", err)
	}
}

// === shared test fixtures ===

// uniformImage fills a w×h image with one RGB color.
func uniformImage(w, h int, r, g, b float64) *Image {
	img := NewImage(w, h)
	for i := 0; i < w*h; i++ {
		p := img.Pix[i*3:]
		p[0], p[1], p[2] = r, g, b
	}
	return img
}

// uniformGray fills a w×h map with one value.
func uniformGray(w, h int, v float64) *Gray {
	g := NewGray(w, h)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// randomImage produces a deterministic pseudo-random image in [0,1].
func randomImage(w, h int, seed int64) *Image {
	rng := rand.New(rand.NewSource(seed))
	img := NewImage(w, h)
	for i := range img.Pix {
		img.Pix[i] = rng.Float64()
	}
	return img
}

// randomGray produces a deterministic pseudo-random map in [0,1].
func randomGray(w, h int, seed int64) *Gray {
	rng := rand.New(rand.NewSource(seed))
	g := NewGray(w, h)
	for i := range g.Pix {
		g.Pix[i] = rng.Float64()
	}
	return g
}

// hazyTestImage synthesizes a plausible hazy scene: a dark-to-bright
// horizontal ramp washed toward a warm gray, with a near-white patch in
// one corner acting as the haze-opaque region.
func hazyTestImage(w, h int) *Image {
	img := NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ramp := float64(x) / float64(w-1)
			img.Set(x, y, 0, 0.3+0.5*ramp)
			img.Set(x, y, 1, 0.35+0.45*ramp)
			img.Set(x, y, 2, 0.4+0.4*ramp)
		}
	}
	for y := 0; y < h/4+1; y++ {
		for x := 0; x < w/4+1; x++ {
			img.Set(x, y, 0, 0.97)
			img.Set(x, y, 1, 0.96)
			img.Set(x, y, 2, 0.98)
		}
	}
	return img
}

// smallConfig keeps windows small enough for fast tests.
func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Algorithm.PatchSize = 3
	cfg.Refinement.GuidedFilter.Radius = 3
	cfg.Refinement.SoftMatting.WinSize = 3
	return cfg
}
