// Package project persists projects and their uploaded recordings in SQLite.
//
// The pipeline treats this store as a thin collaborator: recordings are read
// in upload order (the first is the synchronization reference), and the only
// fields the core mutates are sync_offset, quality_score, project status, and
// the final output path. Last write wins; no transactional coupling with the
// job queue is required.
package project
