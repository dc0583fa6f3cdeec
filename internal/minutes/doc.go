// Package minutes models the meeting service's update payloads and reconciles
// them into canonical session state. It handles id-based transcript dedup,
// full-replace Q&A merging, and the single-finalize guarantee.
package minutes
