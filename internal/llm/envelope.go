package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Envelope adapts a prompt to one model family's request body and reads
// the generated text back out of its response body.
type Envelope interface {
	Family() string
	BuildRequest(prompt string) ([]byte, error)
	ExtractText(body []byte) (string, error)
}

type GenerationParams struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

func DefaultGenerationParams() GenerationParams {
	return GenerationParams{MaxTokens: 1000, Temperature: 0.1, TopP: 0.9}
}

// Llama3Envelope speaks the Meta Llama 3 instruct format on Bedrock.
type Llama3Envelope struct {
	Params GenerationParams
}

func (Llama3Envelope) Family() string { return "llama3" }

func (e Llama3Envelope) BuildRequest(prompt string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"prompt": "<|begin_of_text|><|start_header_id|>user<|end_header_id|>\n\n" +
			prompt +
			"<|eot_id|><|start_header_id|>assistant<|end_header_id|>\n\n",
		"max_gen_len": e.Params.MaxTokens,
		"temperature": e.Params.Temperature,
		"top_p":       e.Params.TopP,
	})
}

func (Llama3Envelope) ExtractText(body []byte) (string, error) {
	var resp struct {
		Generation *string `json:"generation"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode llama3 response: %w", err)
	}
	if resp.Generation == nil || strings.TrimSpace(*resp.Generation) == "" {
		return "", fmt.Errorf("%w: generation field missing, response keys: %s", ErrMissingText, keysOf(body))
	}
	return *resp.Generation, nil
}

// MistralEnvelope speaks the Mistral instruct format on Bedrock.
type MistralEnvelope struct {
	Params GenerationParams
}

func (MistralEnvelope) Family() string { return "mistral" }

func (e MistralEnvelope) BuildRequest(prompt string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"prompt":      "<s>[INST] " + prompt + " [/INST]",
		"max_tokens":  e.Params.MaxTokens,
		"temperature": e.Params.Temperature,
		"top_p":       e.Params.TopP,
	})
}

func (MistralEnvelope) ExtractText(body []byte) (string, error) {
	var resp struct {
		Outputs []struct {
			Text string `json:"text"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode mistral response: %w", err)
	}
	if len(resp.Outputs) == 0 || strings.TrimSpace(resp.Outputs[0].Text) == "" {
		return "", fmt.Errorf("%w: outputs[0].text missing, response keys: %s", ErrMissingText, keysOf(body))
	}
	return resp.Outputs[0].Text, nil
}

func keysOf(body []byte) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return "<not an object>"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// Registry maps model identifiers to their envelopes. New model families
// are added by registering them, never by inspecting the identifier.
type Registry struct {
	mu        sync.RWMutex
	envelopes map[string]Envelope
}

func NewRegistry() *Registry {
	return &Registry{envelopes: make(map[string]Envelope)}
}

// DefaultRegistry registers the Bedrock models TrustBites has been run against.
func DefaultRegistry(params GenerationParams) *Registry {
	r := NewRegistry()
	llama := Llama3Envelope{Params: params}
	r.Register("meta.llama3-70b-instruct-v1:0", llama)
	r.Register("meta.llama3-8b-instruct-v1:0", llama)
	mistral := MistralEnvelope{Params: params}
	r.Register("mistral.mistral-large-2402-v1:0", mistral)
	r.Register("mistral.mistral-7b-instruct-v0:2", mistral)
	return r
}

func (r *Registry) Register(modelID string, envelope Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes[modelID] = envelope
}

func (r *Registry) Lookup(modelID string) (Envelope, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	env, ok := r.envelopes[modelID]
	return env, ok
}

func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.envelopes))
	for id := range r.envelopes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
