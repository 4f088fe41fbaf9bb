// Package model defines the provider-agnostic abstraction over language
// models used to generate dialogue.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Classify provider throttling uniformly (ErrRateLimited) so callers can
//     move on to the next candidate
//   - Chain candidates with Cascade
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI-compatible endpoints such as OpenRouter, and Anthropic)
// implement Model in sub-packages so higher layers stay decoupled from vendor
// SDKs.
package model
