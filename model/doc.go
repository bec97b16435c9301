// Package model defines the provider-agnostic abstractions for generating an
// agent's turn in a chatmesh conversation.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement Model in sub-packages so the
// dispatcher stays decoupled from vendor SDKs.
package model
