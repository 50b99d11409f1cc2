// Package config handles configuration loading for portfolio-chat.
//
// # Overview
//
// Configuration starts from built-in defaults, is overlaid by an optional
// YAML or TOML file, and finally by environment variables. The result is
// validated before use.
//
// # Configuration File
//
// The file format follows the extension: .toml is parsed as TOML, anything
// else as YAML. Values can reference environment variables:
//
//	provider:
//	  api_base_url: "${PORTFOLIO_BACKEND_URL}"
//
// # Sections
//
//	provider:
//	  api_base_url: "http://localhost:8000"
//	  chat_endpoint: "/chat"
//	  max_retries: 3
//	  timeout: "10s"
//	  use_mock: false
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//
//	widget:
//	  greeting: "Hi! ..."
//	  quick_prompts: ["Como você escala sistemas?"]
//	  error_message: "Oops. ..."
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text or json
//
// # Environment Overrides
//
// API_BASE_URL, CHAT_ENDPOINT, MAX_RETRIES, TIMEOUT_MS (milliseconds) and
// USE_MOCK take precedence over the file.
package config
