// Package history keeps a journal of finished session runs.
//
// The journal is a single JSON file in the platform data directory:
//   - Linux: ~/.local/share/chainblock/history.json
//   - macOS: ~/Library/Application Support/chainblock/history.json
//   - Windows: %APPDATA%/chainblock/history.json
//
// It is written atomically and carries a version number. A Journal is a
// session.Sink, so the CLI plugs it into the manager next to the console.
package history
