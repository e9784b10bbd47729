// Package cli implements the protolink command.
//
// # Commands
//
// link: link and validate the proto roots; exits 1 with the diagnostics
//
//	protolink link ./proto --descriptor-out schema.pb --format binary
//
// lint: style rules from protolink.lint.yaml
//
//	protolink lint ./proto --format github
//
// check: breaking-change detection against a source tree or a snapshot
//
//	protolink check ./proto --against ../main/proto
//	protolink check ./proto --snapshot payments --mode FULL_TRANSITIVE
//
// graph: import graph as DOT, Mermaid or Cytoscape JSON
//
//	protolink graph ./proto --format mermaid
//
// snapshot: push, pull, list and delete stored descriptor sets
//
//	protolink snapshot push payments ./proto --version v3
//	protolink snapshot pull payments v3 --format json
//
// watch: re-link on every change
//
//	protolink watch ./proto
//
// serve: the HTTP API, with an optional cron snapshot job
//
//	protolink serve --addr :8080
//
// # Configuration
//
// Every command reads the nearest protolink.yaml (or --config) and the
// PROTOLINK_* environment. --root, --log-level and --log-format override
// the file. When observability.metrics_textfile is set, each run writes its
// metrics there for the node_exporter textfile collector.
package cli
