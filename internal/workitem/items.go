package workitem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"folio/internal/services"
)

// Rejection reasons shared by the stage validators. They are written verbatim
// into error records.
const (
	ReasonDecode          = "Could not load item dictionary"
	ReasonCropMissing     = "Missing in or out file name(s)"
	ReasonOCRMissing      = "Missing required data"
	ReasonInputMissing    = "Input file does not exist"
	ReasonOutputExists    = "Output file exists and overwrite flag not set"
	ReasonOutputDirectory = "Output directory does not exist"
	ReasonOutputNotDir    = "Output path is not a directory"
	ReasonDictsNotList    = "Tesseract dictionaries list is not actually a list!"
	ReasonCaseOrigin      = "No origin image recorded for case"
	ReasonCaseSource      = "No source image recorded for case"
)

// DefaultDicts are used when an OCR item omits dicts or sends an empty list.
var DefaultDicts = []string{"eng", "enm"}

// Crop is a crop-stage work item.
type Crop struct {
	Infile    string          `json:"infile"`
	Outfile   string          `json:"outfile"`
	Overwrite json.RawMessage `json:"overwrite,omitempty"`
	Shelfmark Flex            `json:"shelfmark"`
	Index     Flex            `json:"index"`
	Sequence  Flex            `json:"sequence"`
}

// DecodeCrop parses a raw crop payload. Only malformed JSON fails here; field
// checks belong to the stage validator.
func DecodeCrop(raw string) (Crop, error) {
	var item Crop
	if err := decode(raw, &item); err != nil {
		return Crop{}, services.Wrap(services.ErrDeserialization, "crop", "decode", ReasonDecode, err)
	}
	item.Infile = strings.TrimSpace(item.Infile)
	item.Outfile = strings.TrimSpace(item.Outfile)
	return item, nil
}

// Case returns the case reference when shelfmark, index, and sequence are all set.
func (c Crop) Case() (Case, bool) {
	return caseOf(c.Shelfmark, c.Index, c.Sequence)
}

// OverwriteAllowed reports whether the producer set the overwrite flag.
func (c Crop) OverwriteAllowed() bool {
	return overwriteSet(c.Overwrite)
}

// Direct reports whether both explicit paths were supplied.
func (c Crop) Direct() bool {
	return c.Infile != "" && c.Outfile != ""
}

// OCR is an OCR-stage work item.
type OCR struct {
	Infile    string          `json:"infile"`
	Outpath   string          `json:"outpath"`
	Dicts     json.RawMessage `json:"dicts,omitempty"`
	Shelfmark Flex            `json:"shelfmark"`
	Index     Flex            `json:"index"`
	Sequence  Flex            `json:"sequence"`
}

// DecodeOCR parses a raw OCR payload.
func DecodeOCR(raw string) (OCR, error) {
	var item OCR
	if err := decode(raw, &item); err != nil {
		return OCR{}, services.Wrap(services.ErrDeserialization, "ocr", "decode", ReasonDecode, err)
	}
	item.Infile = strings.TrimSpace(item.Infile)
	item.Outpath = strings.TrimSpace(item.Outpath)
	return item, nil
}

// Case returns the case reference when shelfmark, index, and sequence are all set.
func (o OCR) Case() (Case, bool) {
	return caseOf(o.Shelfmark, o.Index, o.Sequence)
}

// Direct reports whether both explicit paths were supplied.
func (o OCR) Direct() bool {
	return o.Infile != "" && o.Outpath != ""
}

// Languages returns the tesseract dictionaries to run. A missing, null, or
// empty list yields DefaultDicts; anything other than a list of strings is a
// validation failure.
func (o OCR) Languages() ([]string, error) {
	trimmed := bytes.TrimSpace(o.Dicts)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return append([]string(nil), DefaultDicts...), nil
	}
	var dicts []string
	if trimmed[0] != '[' || json.Unmarshal(trimmed, &dicts) != nil {
		return nil, services.Wrap(services.ErrValidation, "ocr", "validate", ReasonDictsNotList, nil)
	}
	out := make([]string, 0, len(dicts))
	for _, dict := range dicts {
		if d := strings.TrimSpace(dict); d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultDicts...), nil
	}
	return out, nil
}

// CaseOf extracts the case reference from any raw payload, including ones that
// fail stage validation. It returns false for malformed JSON or when any part
// of the triple is missing.
func CaseOf(raw string) (Case, bool) {
	var head struct {
		Shelfmark Flex `json:"shelfmark"`
		Index     Flex `json:"index"`
		Sequence  Flex `json:"sequence"`
	}
	if decode(raw, &head) != nil {
		return Case{}, false
	}
	return caseOf(head.Shelfmark, head.Index, head.Sequence)
}

// EncodeCase builds a case-mode payload for producers.
func EncodeCase(c Case, extra map[string]any) (string, error) {
	payload := map[string]any{
		"shelfmark": c.Shelfmark,
		"index":     c.Index,
		"sequence":  c.Sequence,
	}
	for k, v := range extra {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decode(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		var value any
		if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
			return err
		}
		return fmt.Errorf("expected a JSON object, got %s", jsonKind(value))
	}
	return json.Unmarshal([]byte(trimmed), v)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	default:
		return "value"
	}
}
