// Package config handles configuration loading for gate-console.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Missing values get defaults and the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from GATE_CONSOLE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/gate-console/console.yaml
//  3. ~/.config/gate-console/console.yaml
//
// A file ending in .toml is decoded as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	api:
//	  token: "${GATE_API_TOKEN}"
//
// Unset variables expand to an empty string.
//
// # Configuration Sections
//
//	console:
//	  allowed_agents: [1, 2, 3]     # operator ids that may be selected
//	  dedupe_window: "30s"          # "0s" disables re-raise detection
//	  resolution_timeout: "15s"
//
//	transport:
//	  kind: "nats"                  # nats or websocket
//	  url: "nats://127.0.0.1:4222"
//	  gate_subject: "gate.status"
//	  register_subject: "agent.register"
//	  reconnect_wait: "1s"
//	  max_reconnect_wait: "30s"
//
//	api:
//	  base_url: "https://parking.example.com/api"
//	  token: "${GATE_API_TOKEN}"
//	  timeout: "10s"
//
//	gate_control:
//	  base_url: "http://gates.local:8080"
//	  health: "http"                # http or grpc
//	  grpc_addr: "gates.local:50051"
//	  ping_timeout: "3s"
//	  open_timeout: "5s"
//
//	database:
//	  path: "~/.local/share/gate-console/console.db"
//
//	notify:
//	  queue_size: 16
//	  bell:
//	    muted: false
//	  matrix:
//	    enabled: false
//	  slack:
//	    enabled: false
//	    webhook_url: "${SLACK_WEBHOOK_URL}"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
