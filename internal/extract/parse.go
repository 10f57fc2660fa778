// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package extract

import (
	"encoding/json"
	"strings"
)

// # Response Parsing

/*
ParseResponse turns raw model output into a record, with one repair pass.

Description:
  The text is parsed as a JSON object; on failure a single repair attempt
  strips markdown fences and commentary and extracts the largest balanced
  JSON object before parsing again. A response that parses but carries none
  of the six schema keys fails the schema gate.

Returns:
  - *Record: The normalized record.
  - error: [Error] with kind parse_failure or schema_failure.
*/
func ParseResponse(text string) (*Record, error) {
	parsed, ok := parseObject(text)
	if !ok {
		repaired, found := RepairJSON(text)
		if found {
			parsed, ok = parseObject(repaired)
		}
		if !ok {
			return nil, NewError(KindParseFailure, "response is not valid JSON after repair", nil)
		}
	}

	if !hasSchemaAnchor(parsed) {
		return nil, NewError(KindSchemaFailure, "response carries none of the expected schema keys", nil)
	}

	return BuildRecord(parsed), nil
}

// parseObject decodes text into a JSON object.
func parseObject(text string) (map[string]any, bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// hasSchemaAnchor reports whether at least one top-level schema key is
// present, the minimum to treat the reply as an extraction attempt.
func hasSchemaAnchor(parsed map[string]any) bool {
	for _, key := range recordKeys {
		if _, ok := parsed[key]; ok {
			return true
		}
	}
	return false
}

/*
RepairJSON recovers a JSON object from a chatty model reply.

Description:
  Markdown code fences are removed, then the text is scanned for balanced
  top-level objects with string and escape awareness, and the largest one
  wins. Leading prose, trailing commentary, and stray fragments around the
  object all fall away.

Returns:
  - string: The candidate JSON object.
  - bool: False when no balanced object exists.
*/
func RepairJSON(text string) (string, bool) {
	cleaned := stripFences(text)

	var (
		bestStart  = -1
		bestLength = 0
		depth      = 0
		start      = -1
		inString   = false
		escaped    = false
	)

	for index := 0; index < len(cleaned); index++ {
		character := cleaned[index]

		if inString {
			switch {
			case escaped:
				escaped = false
			case character == '\\':
				escaped = true
			case character == '"':
				inString = false
			}
			continue
		}

		switch character {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = index
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				length := index - start + 1
				if length > bestLength {
					bestStart = start
					bestLength = length
				}
			}
		}
	}

	if bestStart < 0 {
		return "", false
	}
	return cleaned[bestStart : bestStart+bestLength], true
}

// stripFences removes markdown code fence lines such as ``` and ```json.
func stripFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
