package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// ParseError is raised when a model response yields no usable records even
// after terminal recovery. It carries the raw response for diagnostics.
type ParseError struct {
	Message string
	Raw     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse llm response: %s", e.Message)
}

// ParseResponse turns a complete (non-streamed) model response into records.
// It tolerates markdown code-fence wrapping, a top-level {"schools": [...]}
// wrapper, a top-level object that is itself a single record, and a bare
// array. When strict decoding fails it attempts terminal recovery over the
// raw text before giving up with a ParseError.
func ParseResponse(response string) ([]SchoolRecord, error) {
	text := strings.TrimSpace(response)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	if records, err := decodeResponseBody(text); err == nil {
		for i := range records {
			records[i].Normalize()
		}
		return records, nil
	} else if recovered := RecoverRecords(text); len(recovered) > 0 {
		return recovered, nil
	} else {
		return nil, &ParseError{Message: err.Error(), Raw: response}
	}
}

func decodeResponseBody(text string) ([]SchoolRecord, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		var records []SchoolRecord
		if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, err
	}
	if schools, ok := obj["schools"]; ok {
		var records []SchoolRecord
		if err := json.Unmarshal(schools, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	// A lone record object: wrap as a one-element list.
	if _, ok := obj["school_name"]; ok {
		var rec SchoolRecord
		if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
			return nil, err
		}
		return []SchoolRecord{rec}, nil
	}
	return nil, fmt.Errorf("object has neither a schools array nor a school_name")
}
