package workitem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Flex holds an identifier that producers send either as a JSON string or a
// JSON number.
type Flex string

// UnmarshalJSON accepts strings, numbers, and null.
func (f *Flex) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = Flex(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", trimmed)
	}
	*f = Flex(n.String())
	return nil
}

// String returns the identifier text.
func (f Flex) String() string {
	return string(f)
}

// Case identifies one page within a provenance document.
type Case struct {
	Shelfmark string
	Index     string
	Sequence  string
}

// Label renders the case as "shelfmark/index/sequence" for logs and status lines.
func (c Case) Label() string {
	return c.Shelfmark + "/" + c.Index + "/" + c.Sequence
}

func caseOf(shelfmark, index, sequence Flex) (Case, bool) {
	c := Case{
		Shelfmark: strings.TrimSpace(shelfmark.String()),
		Index:     strings.TrimSpace(index.String()),
		Sequence:  strings.TrimSpace(sequence.String()),
	}
	return c, c.Shelfmark != "" && c.Index != "" && c.Sequence != ""
}

// overwriteSet reports whether the overwrite field was supplied with any value
// other than false or null.
func overwriteSet(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	return !bytes.Equal(trimmed, []byte("false")) && !bytes.Equal(trimmed, []byte("null"))
}
