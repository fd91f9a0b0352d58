package advisory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"quantguard/internal/decision"
	"quantguard/internal/pkg/jsonutil"
)

var (
	ErrNoJSON        = errors.New("advisory: response contains no json object")
	ErrInvalidAction = errors.New("advisory: missing or invalid action")
	ErrCircuitOpen   = errors.New("advisory: circuit open")
)

const responseSchema = `{
  "type": "object",
  "required": ["action", "reason"],
  "properties": {
    "action": {"type": "string", "enum": ["BUY", "SELL", "HOLD"]},
    "reason": {"type": "string"}
  }
}`

var compiledSchema = jsonschema.MustCompileString("advisory_response.json", responseSchema)

// parseResponse 清洗推理模型输出并严格校验结构，任何偏差都算失败。
func parseResponse(raw string) (decision.Decision, error) {
	cleaned := jsonutil.StripThinking(raw)
	obj, ok := jsonutil.ExtractObject(cleaned)
	if !ok || !gjson.Valid(obj) {
		return decision.Decision{}, ErrNoJSON
	}
	var doc any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return decision.Decision{}, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		parsed := gjson.Parse(obj)
		if _, ok := decision.ParseAdvisoryAction(parsed.Get("action").String()); !ok {
			return decision.Decision{}, fmt.Errorf("%w: %q", ErrInvalidAction, parsed.Get("action").String())
		}
		return decision.Decision{}, fmt.Errorf("advisory: schema: %w", err)
	}
	parsed := gjson.Parse(obj)
	action, ok := decision.ParseAdvisoryAction(parsed.Get("action").String())
	if !ok {
		return decision.Decision{}, ErrInvalidAction
	}
	return decision.Decision{
		Action: action,
		Reason: strings.TrimSpace(parsed.Get("reason").String()),
	}, nil
}
