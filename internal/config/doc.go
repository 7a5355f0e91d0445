// Package config handles configuration loading for alpha-core.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Every field has a default, so an empty file (plus database.path)
// is a valid configuration.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ALPHA_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/alpha/core.yaml
//  3. ~/.config/alpha/core.yaml
//
// Paths ending in .toml are decoded with BurntSushi/toml, everything else
// with yaml.v3.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${ALPHA_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:8080"
//	  read_header_timeout: "10s"
//	  shutdown_timeout: "10s"
//
//	database:
//	  path: "/var/lib/alpha/core.db"
//
//	node:
//	  id: "ALPHA-01"
//	  manifesto_file: "manifesto.md"   # or inline manifesto:
//
//	genesis:
//	  collection: "genesis_logs"
//	  enforce_unique: true
//
//	certification:
//	  collection: "integrityRecords"
//	  emitter_id: "ALPHA-CORE-V11"
//	  version: "v1.1"
//
//	variants:
//	  - name: "v1"
//	    path_prefix: "/v1"
//	    region: "us-central1"
//	    invoker: "public"
//	    cors:
//	      allowed_origins: ["*"]
//	    plain_errors: true
//	  - name: "v2"
//	    path_prefix: "/v2"
//	    invoker: "private"
//	    secrets: ["SOVEREIGN_KEY"]
//	    mirror_headers: true
//
//	secrets:
//	  backend: "store"   # store, env
//
//	notify:
//	  matrix:
//	    enabled: false
//	    homeserver: "https://matrix.org"
//	    user_id: "@alpha:matrix.org"
//	    access_token: "${MATRIX_TOKEN}"
//	    room_id: "!ops:matrix.org"
//
//	tailscale:
//	  enabled: false
//	  hostname: "alpha-core"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() rejects a certification.threshold other than 0.842, duplicate variant
// names or path prefixes, private variants without auth.jwt_secret, and
// incomplete Matrix settings.
package config
