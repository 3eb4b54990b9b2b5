/*
Package session implements the in-memory conversation registry.

It provides get-or-create with a single factory run per missing conversation,
idempotent replacement of session records, and per-conversation mutual exclusion
so that turns of one conversation never interleave while different conversations
proceed in parallel. Nothing is persisted beyond the process.
*/
package session
