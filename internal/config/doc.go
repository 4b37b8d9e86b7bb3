// Package config loads and validates the YAML service configuration.
//
// Load starts from built-in defaults, overlays the file contents, and
// rejects any combination the server cannot run with. Validation is
// strict about audio parameters: the transcription pipeline only accepts
// 16 kHz mono 16-bit PCM.
package config
