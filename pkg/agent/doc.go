// Package agent provides the gateway to reasoning agents. It abstracts over
// LLM providers (Anthropic, OpenAI) behind a single Invoke call and
// classifies failures as transient (retryable) or permanent.
package agent
