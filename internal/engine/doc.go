// Package engine defines the transcription engine boundary and its two
// implementations: a local whisper-cli subprocess engine with model
// resolution and download, and a remote HTTP transcription API client.
package engine
