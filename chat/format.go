package chat

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"mcpchat/model"
)

// FormatResult renders a tool result as the text the model sees on its next
// turn: item texts separated by a blank line, structured items as indented
// JSON.
func FormatResult(result model.ToolResult) string {
	parts := make([]string, 0, len(result.Content))
	for _, item := range result.Content {
		if item.Type == model.ContentText {
			parts = append(parts, item.Text)
			continue
		}
		parts = append(parts, prettyJSON(item.Data))
	}
	return strings.Join(parts, "\n\n")
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	if !gjson.ValidBytes(raw) {
		return string(raw)
	}
	return strings.TrimRight(string(pretty.Pretty(raw)), "\n")
}
