/*
Package observability provides Prometheus instrumentation for the Parley engine.

It counts orchestrated turns by outcome, times free-text completions, tracks
completion failures by kind and counts created sessions. A nil *Metrics is valid
and records nothing, so instrumentation stays optional for library users.
*/
package observability
