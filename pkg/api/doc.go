// Package api implements the protolink HTTP service.
//
// # Routes
//
//	POST   /v1/link                          link sources; 422 with diagnostics
//	POST   /v1/lint                          lint sources
//	POST   /v1/compatibility                 compare sources to sources or a snapshot; 409 when incompatible
//	POST   /v1/graph                         import graph of posted sources
//	GET    /v1/graph?snapshot=name           import graph of a stored snapshot
//	GET    /v1/snapshots?name=               list snapshots
//	GET    /v1/snapshots/{name}[/{version}]  fetch a snapshot, the latest when no version is given
//	PUT    /v1/snapshots/{name}[/{version}]  link sources and store them
//	DELETE /v1/snapshots/{name}/{version}
//	GET    /healthz, /readyz, /metrics
//
// Request bodies carry sources as a map from import path to proto text:
//
//	{"sources": {"acme/user.proto": "syntax = \"proto3\"; ..."}}
//
// # Usage
//
//	srv := api.NewServer(api.Options{
//		Pipeline: pipeline.New(loader.New(afero.NewMemMapFs(), nil, cfg.LoaderConfig(log)), pipeline.Options{}),
//		Store:    store,
//		Gatherer: registry,
//		Metrics:  metrics,
//		Logger:   log,
//	})
//	http.ListenAndServe(":8080", srv.Handler())
package api
