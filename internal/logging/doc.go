// Package logging builds the process logger.
//
// Logs go to the console, a rotated file, or both, as human-readable text,
// one JSON object per line, or CSV rows of time, level and message. File
// rotation runs on a fixed period ("1d") and keeps a bounded number of old
// files ("7d").
package logging
