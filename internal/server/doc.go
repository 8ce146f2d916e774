// Package server implements the HTTP surface of the file host: the landing
// page, the multipart upload endpoint, file downloads, health probes and
// metrics. It wires the upload pipeline and the storage backend together
// and provides lifecycle helpers used by tests and the production binary.
package server
