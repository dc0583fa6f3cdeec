// Package upload implements the HTTP client for the remote meeting service.
// It ships encoded audio segments as multipart form data with their capture
// metadata and carries the meeting start/stop control operations.
package upload
