// Package audio implements the segmented capture pipeline: audio source
// acquisition, codec selection and encoding, timer-driven segmentation with
// an asynchronous flush grace period, and the frequency visualizer feed.
package audio
