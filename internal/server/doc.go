// Package server implements the WebSocket transcription endpoint and the
// HTTP monitoring API.
//
// Each accepted WebSocket connection runs an independent session on its
// own goroutine: the session waits for the shared model to become ready,
// then alternates between idle and recording in response to client
// control messages, handing completed utterances to the transcription
// engine. Blocking engine work never stalls other connections.
package server
