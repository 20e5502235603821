package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseJSONResponse unmarshals a model response, tolerating markdown code
// fences some models wrap around JSON output.
func parseJSONResponse(content string, v interface{}) error {
	cleaned := cleanJSONResponse(content)
	if cleaned == "" {
		return fmt.Errorf("empty response")
	}

	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		preview := cleaned
		if len(preview) > 500 {
			preview = preview[:500]
		}
		return fmt.Errorf("%w (first %d chars: %s)", err, len(preview), preview)
	}

	return nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	return content
}
