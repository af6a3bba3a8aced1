// Package server implements the HTTP server for interactive dehazing.
//
// The server accepts image uploads, runs the haze-removal pipeline in the
// background, and streams progress to clients over Server-Sent Events
// (SSE). Each upload creates a job with a random hexadecimal ID; clients
// poll nothing and instead subscribe to the job's event stream.
//
// # Endpoints
//
//   - POST /process-image: Upload an image (multipart field "image",
//     optional YAML field "config") and start a single pipeline run.
//     Responds with {"job_id": "..."}.
//   - POST /process-experiment: Upload an image (field "image") plus an
//     experiment definition (YAML field "experiment" with a
//     parameter_grid) and start a batch sweep.
//   - GET /stream-logs/{id}: SSE stream of the job's events. Events
//     published before the client connects are replayed, so a subscriber
//     never misses the beginning of a run.
//   - GET /default-config: The default pipeline configuration as JSON.
//
// # Event Stream
//
// Every SSE message is a JSON object with a "type" field:
//
//   - "log": A progress message from a pipeline stage.
//   - "result_intermediate": An intermediate artifact (dark channel,
//     transmission map) as a base64 PNG data URI.
//   - "run_result": A finished dehazed output, one per method run.
//   - "done": The job finished; the stream ends after this event.
//   - "error": The job failed; the stream ends after this event.
//
// # Interactive Profile
//
// Soft matting is too slow for interactive use, so /process-image forces
// the guided filter and reports the substitution as a "log" event when a
// different method was requested. /process-experiment runs whatever the
// grid asks for.
package server
