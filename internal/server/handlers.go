package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazetools/dehaze/internal/batch"
	"github.com/hazetools/dehaze/internal/codec"
	"github.com/hazetools/dehaze/internal/dcp"
	"github.com/hazetools/dehaze/internal/render"
)

// encodeArtifact renders a pipeline artifact as a base64 PNG data URI.
// Transmission maps become false-color heatmaps; everything else keeps its
// natural rendering.
func encodeArtifact(a dcp.Artifact) (string, error) {
	switch {
	case a.Image != nil:
		return codec.EncodeBase64PNG(codec.ToImage(a.Image))
	case a.Gray != nil && a.Name != "dark_channel":
		return codec.EncodeBase64PNG(render.TransmissionHeatmap(a.Gray))
	case a.Gray != nil:
		return codec.EncodeBase64PNG(codec.GrayToImage(a.Gray))
	default:
		return "", fmt.Errorf("artifact %s carries no image", a.Name)
	}
}

// handleProcessImage starts a single interactive pipeline run.
func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	img, cfg, ok := s.parseImageUpload(w, r, "config")
	if !ok {
		return
	}

	forced := false
	if cfg.Refinement.Method != dcp.MethodGuidedFilter && cfg.Refinement.Method != "" {
		cfg.Refinement.Method = dcp.MethodGuidedFilter
		forced = true
	}

	j, err := s.jobs.create()
	if err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info().Str("job", j.id).Int("width", img.W).Int("height", img.H).
		Msg("interactive run accepted")

	go func() {
		sink := &jobSink{job: j, encode: encodeArtifact}
		if forced {
			sink.Progress(dcp.StageStart,
				"Warning: only guided_filter refinement is available interactively; other methods run via experiments.")
		}

		res, err := dcp.Run(context.Background(), img, cfg, sink)
		if err != nil {
			j.publish(Event{Type: eventError, Message: err.Error()})
			return
		}
		for _, run := range res.Runs {
			uri, err := codec.EncodeBase64PNG(codec.ToImage(run.Radiance))
			if err != nil {
				j.publish(Event{Type: eventError, Message: err.Error()})
				return
			}
			j.publish(Event{Type: eventRunResult, Name: "dehazed_" + string(run.Method),
				Message: fmt.Sprintf("Dehazed output (%s).", string(run.Method)), Image: uri})
		}
		j.publish(Event{Type: eventDone, Message: "Processing complete."})
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": j.id})
}

// handleProcessExperiment starts a parameter-sweep batch.
func (s *Server) handleProcessExperiment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.httpError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	img, ok := s.parseImageField(w, r)
	if !ok {
		return
	}

	spec := struct {
		Base dcp.Config `yaml:",inline"`
		Grid batch.Grid `yaml:"parameter_grid"`
	}{Base: dcp.DefaultConfig()}
	raw := r.FormValue("experiment")
	if raw != "" {
		if err := yaml.Unmarshal([]byte(raw), &spec); err != nil {
			s.httpError(w, http.StatusBadRequest, fmt.Errorf("invalid experiment definition: %w", err))
			return
		}
	}
	if err := spec.Base.Validate(); err != nil {
		s.httpError(w, http.StatusBadRequest, err)
		return
	}
	variants, err := batch.Expand(spec.Base, spec.Grid)
	if err != nil {
		s.httpError(w, http.StatusBadRequest, err)
		return
	}

	j, err := s.jobs.create()
	if err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info().Str("job", j.id).Int("variants", len(variants)).
		Msg("experiment accepted")

	go func() {
		j.publish(Event{Type: eventLog, Stage: dcp.StageStart,
			Message: fmt.Sprintf("Running %d parameter combinations...", len(variants))})

		results := batch.Execute(context.Background(), img, variants, s.workers, s.log)
		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				j.publish(Event{Type: eventLog, Name: res.Variant.Name,
					Message: fmt.Sprintf("Run %s failed: %v", res.Variant.Name, res.Err)})
				continue
			}
			fig, err := render.ComparisonFigure(img, res.Result)
			if err != nil {
				failed++
				j.publish(Event{Type: eventLog, Name: res.Variant.Name,
					Message: fmt.Sprintf("Run %s: %v", res.Variant.Name, err)})
				continue
			}
			uri, err := codec.EncodeBase64PNG(fig)
			if err != nil {
				failed++
				j.publish(Event{Type: eventLog, Name: res.Variant.Name,
					Message: fmt.Sprintf("Run %s: %v", res.Variant.Name, err)})
				continue
			}
			j.publish(Event{Type: eventRunResult, Name: res.Variant.Name,
				Message: fmt.Sprintf("Run %s finished in %s.", res.Variant.Name, res.Elapsed.Round(time.Millisecond)),
				Image:   uri})
		}

		if failed == len(results) {
			j.publish(Event{Type: eventError, Message: "All runs failed."})
			return
		}
		j.publish(Event{Type: eventDone,
			Message: fmt.Sprintf("Experiment complete: %d/%d runs succeeded.", len(results)-failed, len(results))})
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": j.id})
}

// handleStreamLogs streams a job's events as SSE until the job finishes
// or the client disconnects.
func (s *Server) handleStreamLogs(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobs.get(r.PathValue("id"))
	if !ok {
		s.httpError(w, http.StatusNotFound, fmt.Errorf("unknown job %q", r.PathValue("id")))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.httpError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	history, live := j.subscribe()
	for _, e := range history {
		if err := writeSSE(w, e); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case e, open := <-live:
			if !open {
				return
			}
			if err := writeSSE(w, e); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleDefaultConfig reports the default pipeline configuration.
func (s *Server) handleDefaultConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, dcp.DefaultConfig())
}

// writeSSE writes one event in SSE wire format.
func writeSSE(w http.ResponseWriter, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// parseImageUpload reads the "image" multipart field and an optional YAML
// config field, overlaying it on the defaults.
func (s *Server) parseImageUpload(w http.ResponseWriter, r *http.Request, configField string) (*dcp.Image, dcp.Config, bool) {
	cfg := dcp.DefaultConfig()
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.httpError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return nil, cfg, false
	}

	img, ok := s.parseImageField(w, r)
	if !ok {
		return nil, cfg, false
	}

	if raw := r.FormValue(configField); raw != "" {
		if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
			s.httpError(w, http.StatusBadRequest, fmt.Errorf("invalid config: %w", err))
			return nil, cfg, false
		}
	}
	if err := cfg.Validate(); err != nil {
		s.httpError(w, http.StatusBadRequest, err)
		return nil, cfg, false
	}
	return img, cfg, true
}

// parseImageField decodes the required "image" multipart file.
func (s *Server) parseImageField(w http.ResponseWriter, r *http.Request) (*dcp.Image, bool) {
	file, _, err := r.FormFile("image")
	if err != nil {
		s.httpError(w, http.StatusBadRequest, fmt.Errorf("missing image upload: %w", err))
		return nil, false
	}
	defer file.Close()

	img, err := codec.Decode(file)
	if err != nil {
		s.httpError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return img, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to write response")
	}
}

func (s *Server) httpError(w http.ResponseWriter, status int, err error) {
	s.log.Warn().Err(err).Int("status", status).Msg("request rejected")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
