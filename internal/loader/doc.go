// Package loader implements the single-flight barrier around transcription
// engine initialization. The load runs exactly once regardless of how many
// sessions request it; progress is published as a staged state record and
// pushed to observers, and the terminal outcome (ready or a stored load
// error) is visible to every current and future waiter.
package loader
