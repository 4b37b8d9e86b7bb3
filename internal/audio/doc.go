// Package audio handles per-utterance audio buffering and format conversion.
// It accumulates raw PCM-16 chunks as normalized float samples and encodes
// audio to WAV for the transcription engine boundary.
package audio
