// Package config provides application configuration from protolink.yaml and
// environment variables.
//
// # Overview
//
// Load searches the working directory and its parents for protolink.yaml,
// decodes it over the defaults, applies PROTOLINK_* environment overrides
// and validates the result. Relative paths in the file are resolved against
// the file's directory.
//
// # Configuration File
//
//	server:
//	  port: "8080"
//	  snapshot_schedule: "0 * * * *"
//	  snapshot_name: api
//	link:
//	  roots: [proto, third_party]
//	  parallelism: 8
//	  cache_ttl: 10m
//	storage:
//	  type: postgres  # filesystem, redis, postgres, sqlite, s3
//	  postgres_url: postgres://localhost/protolink?sslmode=disable
//	observability:
//	  log_level: info
//	  log_format: json
//	  otel:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	lint:
//	  config: protolink.lint.yaml
//
// # Environment
//
//	PROTOLINK_PORT="9000"
//	PROTOLINK_ROOTS="proto,third_party"
//	PROTOLINK_STORAGE_TYPE="redis"
//	PROTOLINK_REDIS_URL="redis://localhost:6379/0"
//	PROTOLINK_LOG_LEVEL="debug"
//	PROTOLINK_OTEL_ENABLED="true"
//
// # Usage Example
//
//	cfg, err := config.Load(".")
//	if err != nil {
//		log.Fatal(err)
//	}
//	l := loader.New(afero.NewOsFs(), cfg.Link.Roots, cfg.LoaderConfig(logger))
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
//   - pkg/linter: Lint rule configuration
package config
