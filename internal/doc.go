// Package internal contains the implementation packages of assetc.
//
// # Package Organization
//
//   - backend: the capability contract and the backend registry
//   - backend/external: backends that run a command line compiler
//   - backend/builtin: the backends assetc ships with
//   - pipeline: path resolution, staleness policy and the compile pipeline
//   - dispatch: per-request backend iteration and the HTTP middleware
//   - config: viper-loaded configuration and validation
//   - errors: the structured error taxonomy
//   - logging: slog-backed structured logging
//   - fsutil: file metadata and directory helpers
//   - events: WebSocket stream of compile outcomes
//   - metrics: Prometheus metrics for compile outcomes
//   - telemetry: OpenTelemetry tracer setup
//   - server: chi router serving the destination roots
//   - version: build identity
//
// # Request Flow
//
// A request enters dispatch.Dispatcher.Middleware, which builds a
// pipeline.Request and runs the pipeline of every enabled backend in order.
// Each pipeline resolves the source and destination paths, decides whether
// the artifact is stale and, if so, compiles and writes it. Outcomes go to
// the observers (events, metrics) and the request continues to the static
// file server.
package internal
