// Package metrics provides observability hooks for pagepress build passes.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics never need nil checks:
//
//	g := generator.New(cfg) // uses metrics.NoopRecorder{}
//	g := generator.New(cfg, generator.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The preview server exposes the registry through HTTPHandler when metrics
// are enabled.
package metrics
