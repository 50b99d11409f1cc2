// Package chat coordinates one widget's conversation: it validates and
// sanitizes user input, drives the state machine through loading and back
// to idle, calls the response provider, and hands every visible change to
// a Renderer. The controller is the only writer of conversation state.
package chat
