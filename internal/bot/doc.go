// Package bot orchestrates the chat flow: deduplication, ban checks,
// bounded conversation memory, call-name preferences, reply generation,
// and replay logging. Stores and the LLM client are injected through
// interfaces so the front end and persistence stay decoupled.
package bot
