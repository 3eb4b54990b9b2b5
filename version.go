package parley

// Version is the release of this build, overridden at link time with
// -ldflags "-X github.com/aretw0/parley.Version=...".
var Version = "0.3.0-dev"
