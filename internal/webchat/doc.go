// Package webchat hosts the chat widget over HTTP.
//
// # Endpoints
//
//   - GET  /                  - Widget page with the transcript so far
//   - GET  /health            - Liveness check
//   - GET  /api/state         - Current state snapshot
//   - POST /api/toggle        - Open or close the widget
//   - POST /api/submit        - {"text": "..."} answered with 202 {"accepted": bool}
//   - POST /api/quick-prompt  - Same as submit, for prompt buttons
//   - GET  /api/events        - Server-Sent Events stream of render events
//
// # SSE Streaming
//
// Every render call on the Stream becomes an event:
//
//	event: message
//	data: {"sender": "bot", "html": "<p>Hello!</p>"}
//
//	event: quick_prompts
//	data: {"prompts": ["..."]}
//
//	event: quick_prompts_removed
//	data: {}
//
//	event: state
//	data: {"conversation_id": "...", "status": "loading", "is_open": true, "is_initialized": true}
//
// A state event is sent as soon as a client connects. Bot replies are
// rendered from markdown with raw HTML omitted.
package webchat
