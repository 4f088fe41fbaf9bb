// Package content produces dialogue for an encounter.
//
// Generator.Generate always returns turns. It looks up the pair's memory,
// asks a Backend for raw dialogue under a deadline, parses the output with a
// parser that tolerates code fences and truncation, and falls back to
// pre-authored templates whenever any of that fails. Successful generations
// are written back to memory without blocking the caller.
//
// Two backends ship with the package: HTTPBackend posts to a generation
// endpoint, ModelBackend prompts a model.Model (typically a model.Cascade)
// directly.
package content
