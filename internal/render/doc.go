// Package render turns a narration script into audio through a speech
// synthesizer.
//
// Scripts longer than the per-call character ceiling are split at paragraph
// boundaries, and inside an oversized paragraph at sentence boundaries. Each
// chunk is synthesized under the shared retry policy and the audio is
// concatenated in script order. When synthesis still fails the renderer
// returns a TextOnly result carrying the script; rendering never aborts a
// run on its own.
//
// An optional Transcoder re-encodes the concatenated audio (ffmpeg); its
// failure only costs the bitrate adjustment.
package render
