// Package backend is a stand-in for the inference service behind the chat
// widget. It answers POST /chat with the same trigger table the simulated
// provider uses and can be told to misbehave: fail the first requests of
// each conversation, hold replies back, or shed load with 503s. Identical
// request bodies seen again within a few minutes are counted as client
// redeliveries.
package backend
