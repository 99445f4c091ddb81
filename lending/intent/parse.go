package intent

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const promptTemplate = `You are a library AI agent.

User message:
%q

Decide the user's intent and extract details.

Possible intents:
%s
Return ONLY valid JSON:
{
  "intent": "%s",
  "title": "book title or null",
  "subject": "subject or null",
  "tag": "tag or null"
}
`

// rawResolution keeps the values untyped, so one field of the wrong type does not cost the others.
type rawResolution map[string]any

// field returns the cleaned string under key. Values of any other JSON type read as empty.
func (r rawResolution) field(key string) string {
	value, _ := r[key].(string)

	return cleanField(value)
}

// Prompt builds the instruction sent to a language model for text.
func Prompt(text string) string {
	var list strings.Builder
	names := make([]string, 0, len(Intents))

	for _, i := range Intents {
		list.WriteString("- " + string(i) + "\n")
		names = append(names, string(i))
	}

	return fmt.Sprintf(promptTemplate, text, list.String(), strings.Join(names, "|"))
}

// ParseResolution reads the first JSON object found in text. It never fails: text without a
// readable object, or with an intent outside Intents, resolves to Unknown. JSON nulls and the
// string "null" leave a field empty, and so does a value that is not a JSON string.
func ParseResolution(text string) Resolution {
	raw, ok := decodeObject(strings.TrimSpace(text))
	if !ok {
		return UnknownResolution()
	}

	resolution := Resolution{
		Intent:  Intent(strings.ToLower(raw.field("intent"))),
		Title:   raw.field("title"),
		Subject: raw.field("subject"),
		Tag:     raw.field("tag"),
	}

	if !resolution.Intent.Known() {
		resolution.Intent = Unknown
	}

	return resolution
}

// decodeObject tries text as a whole, then the span from the first '{' to the last '}'.
func decodeObject(text string) (rawResolution, bool) {
	var raw rawResolution

	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		return raw, true
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end <= start {
		return nil, false
	}

	raw = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, false
	}

	return raw, true
}

func cleanField(value string) string {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "null") || strings.EqualFold(value, "none") {
		return ""
	}

	return value
}
