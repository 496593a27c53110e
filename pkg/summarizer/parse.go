package summarizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/cortex/pkg/memory"
	"github.com/xeipuuv/gojsonschema"
)

// candidateSchema validates the shape of one output element. Range checks
// such as importance bounds belong to the ingestion pipeline; the schema
// only rejects elements the pipeline could not read at all.
const candidateSchema = `{
	"type": "object",
	"required": ["type", "summary"],
	"properties": {
		"type": {"type": "string", "enum": ["task", "knowledge", "note", "noise"]},
		"summary": {"type": "string"},
		"tags": {"type": "array", "items": {"type": "string"}},
		"importance": {"type": "number"},
		"original_time": {"type": "string"}
	}
}`

var candidateSchemaLoader = gojsonschema.NewStringLoader(candidateSchema)

type candidateJSON struct {
	Type         string   `json:"type"`
	Summary      string   `json:"summary"`
	Tags         []string `json:"tags"`
	Importance   float64  `json:"importance"`
	OriginalTime string   `json:"original_time"`
}

// ParseCandidates recovers a candidate array from raw model output.
// Markdown fences and prose around the array are tolerated; output with
// no recoverable JSON array is ErrMalformedOutput. The second return is
// how many elements schema validation rejected.
func ParseCandidates(raw string) ([]memory.Candidate, int, error) {
	jsonText, err := extractArray(raw)
	if err != nil {
		return nil, 0, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &elements); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", memory.ErrMalformedOutput, err)
	}

	candidates := make([]memory.Candidate, 0, len(elements))
	rejected := 0
	for _, element := range elements {
		result, err := gojsonschema.Validate(candidateSchemaLoader, gojsonschema.NewBytesLoader(element))
		if err != nil || !result.Valid() {
			rejected++
			continue
		}

		var c candidateJSON
		if err := json.Unmarshal(element, &c); err != nil {
			rejected++
			continue
		}

		cand := memory.Candidate{
			Type:         memory.MemoryType(c.Type),
			Summary:      c.Summary,
			Tags:         c.Tags,
			Importance:   c.Importance,
			OriginalTime: c.OriginalTime,
		}
		if cand.Importance == 0 {
			cand.Importance = memory.DefaultImportance
		}
		candidates = append(candidates, cand)
	}

	return candidates, rejected, nil
}

// extractArray pulls the first JSON array out of model output, stripping
// markdown fences first.
func extractArray(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON array in output", memory.ErrMalformedOutput)
	}
	return text[start : end+1], nil
}
