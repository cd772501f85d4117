// Package artifact contains core.ArtifactStore implementations. Artifacts are
// named byte blobs scoped to a session, such as the JSON plan a tool saves
// next to its state entry.
package artifact
