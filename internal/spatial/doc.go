// Package spatial turns listener and source geometry into audio rendering
// parameters: volume, stereo pan, directional gain and wall attenuation.
//
// Everything here is pure and deterministic. Callers recompute after each
// pose change and hand the result to whatever renders the audio.
package spatial
