// Package logging configures structured slog output for docrag.
//
// Records are JSON lines appended to a size-rotated file under ~/.docrag/logs/.
// With --debug the level drops to debug and records are mirrored to stderr.
package logging
