// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel, ScriptedModel, FuncModel)
//
// Providers (gemini, openai, anthropic, ollama) implement the Model interface
// from this package so higher layers (agents, flows) remain decoupled from
// vendor SDKs. The registry subpackage maps model identifiers to providers.
package model
