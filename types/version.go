package types

// Version is the canonical project version.
// The CLI, the run report contract, and the session-script grammar all
// share this version.
const Version = "0.2.0"
