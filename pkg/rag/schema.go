package rag

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Wire contracts for the backend. Responses may carry extra fields; the
// request payload may not.

const askPayloadSchema = `{
  "type": "object",
  "properties": {
    "question": {"type": "string"},
    "user_role": {"type": "string", "enum": ["public", "internal", "restricted"]},
    "conversation_id": {"type": "string"}
  },
  "required": ["question", "user_role"],
  "additionalProperties": false
}`

const askResponseSchema = `{
  "type": "object",
  "properties": {
    "answer": {"type": "string"},
    "citations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "doc_id": {"type": "string"},
          "source": {"type": "string"},
          "loc": {"type": "string"},
          "quote": {"type": "string"}
        },
        "required": ["doc_id", "source", "quote"]
      }
    },
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "notes": {"type": "array", "items": {"type": "string"}},
    "metrics": {
      "type": "object",
      "properties": {
        "latency_ms": {"type": "number"},
        "tokens_est": {"type": "number"},
        "cost_est": {"type": "number"},
        "topk": {"type": "number"},
        "docs_used": {"type": "number"}
      },
      "required": ["latency_ms", "tokens_est", "cost_est", "topk", "docs_used"]
    }
  },
  "required": ["answer", "citations", "confidence", "metrics"]
}`

const ingestResponseSchema = `{
  "type": "object",
  "properties": {
    "status": {"type": "string"},
    "message": {"type": "string"}
  },
  "required": ["status"]
}`

var (
	payloadContract  = mustSchema(askPayloadSchema)
	responseContract = mustSchema(askResponseSchema)
	ingestContract   = mustSchema(ingestResponseSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

func validate(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// EncodePayload marshals p and checks it against the ask input contract.
func EncodePayload(p *AskPayload) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, newError(KindPayloadInvalid, 0, "invalid ask payload", err)
	}
	if err := validate(payloadContract, body); err != nil {
		return nil, newError(KindPayloadInvalid, 0, "invalid ask payload", err)
	}
	return body, nil
}

// DecodeResponse checks body against the ask response contract and decodes
// it. Missing notes decode to an empty slice.
func DecodeResponse(body []byte) (*AskResponse, error) {
	if err := validate(responseContract, body); err != nil {
		return nil, newError(KindResponseInvalid, 0, "invalid response from server", err)
	}
	var resp AskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newError(KindResponseInvalid, 0, "invalid response from server", err)
	}
	if resp.Notes == nil {
		resp.Notes = []string{}
	}
	return &resp, nil
}

// ValidateResponse checks an already decoded answer, e.g. one read back from
// local storage, against the response contract.
func ValidateResponse(resp *AskResponse) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return newError(KindResponseInvalid, 0, "invalid response", err)
	}
	if err := validate(responseContract, body); err != nil {
		return newError(KindResponseInvalid, 0, "invalid response", err)
	}
	return nil
}

func decodeIngest(body []byte) (*IngestResponse, error) {
	if err := validate(ingestContract, body); err != nil {
		return nil, err
	}
	var resp IngestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
