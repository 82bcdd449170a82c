package provenance

import (
	"encoding/xml"
	"strings"
	"time"
)

// EntryTimestampLayout is the ISO-8601 layout used for log entry timestamps.
const EntryTimestampLayout = "2006-01-02T15:04:05.000000"

// Document is the root <object> element of a provenance file.
type Document struct {
	XMLName   xml.Name  `xml:"object"`
	Shelfmark string    `xml:"shelfmark,attr"`
	Index     string    `xml:"index,attr"`
	Items     []*Item   `xml:"item"`
	Extra     []Element `xml:",any"`
}

// Item records everything known about one page sequence.
type Item struct {
	Sequence string    `xml:"sequence,attr"`
	Title    *string   `xml:"title,omitempty"`
	Origin   *string   `xml:"origin,omitempty"`
	Images   []Image   `xml:"image"`
	OCR      []OCRText `xml:"ocr"`
	Log      *Log      `xml:"log,omitempty"`
	Extra    []Element `xml:",any"`

	// Text is bare character data. Older documents stored the title this
	// way; it is moved into Title when a document is read.
	Text string `xml:",chardata"`
}

// Image references an image artifact of a given type ("cropped", ...).
type Image struct {
	Type string `xml:"type,attr"`
	Path string `xml:",chardata"`
}

// OCRText references an OCR output file for one dictionary.
type OCRText struct {
	Type     string `xml:"type,attr"`
	Language string `xml:"language,attr"`
	Path     string `xml:",chardata"`
}

// Log is the ordered event history of an item. Documents written with one
// <log> per entry are merged into a single log when read.
type Log struct {
	Entries []Entry `xml:"entry"`
}

// Entry is one processing event.
type Entry struct {
	Timestamp string `xml:"timestamp,attr"`
	Process   string `xml:"process"`
	Status    string `xml:"status"`
}

// Element preserves elements this package does not model so that documents
// enriched by other tools survive a rewrite.
type Element struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// adoptLegacyTitles moves bare item text into Title. An explicit <title>
// wins; the text is dropped either way so it is never written back.
func (d *Document) adoptLegacyTitles() {
	for _, item := range d.Items {
		text := strings.TrimSpace(item.Text)
		item.Text = ""
		if text != "" && item.Title == nil {
			item.Title = &text
		}
	}
}

// NewDocument returns an empty skeleton for a case.
func NewDocument(shelfmark, index string) *Document {
	return &Document{Shelfmark: shelfmark, Index: index}
}

// Item returns the entry for sequence.
func (d *Document) Item(sequence string) (*Item, bool) {
	sequence = strings.TrimSpace(sequence)
	for _, item := range d.Items {
		if item.Sequence == sequence {
			return item, true
		}
	}
	return nil, false
}

func (d *Document) ensureItem(sequence string) *Item {
	if item, ok := d.Item(sequence); ok {
		return item
	}
	item := &Item{Sequence: strings.TrimSpace(sequence)}
	d.Items = append(d.Items, item)
	return item
}

// AddItem creates the entry for sequence if needed and applies any non-empty
// title or origin.
func (d *Document) AddItem(sequence, title, origin string) *Item {
	item := d.ensureItem(sequence)
	if title != "" {
		item.Title = &title
	}
	if origin != "" {
		item.Origin = &origin
	}
	return item
}

// SetTitle sets the title of sequence, creating the entry if needed.
func (d *Document) SetTitle(sequence, title string) {
	d.ensureItem(sequence).Title = &title
}

// SetOrigin sets the origin image path of sequence, creating the entry if needed.
func (d *Document) SetOrigin(sequence, origin string) {
	d.ensureItem(sequence).Origin = &origin
}

// AddImage appends an image artifact reference.
func (d *Document) AddImage(sequence, imageType, path string) {
	item := d.ensureItem(sequence)
	item.Images = append(item.Images, Image{Type: imageType, Path: path})
}

// AddOCR appends an OCR artifact reference.
func (d *Document) AddOCR(sequence, ocrType, language, path string) {
	item := d.ensureItem(sequence)
	item.OCR = append(item.OCR, OCRText{Type: ocrType, Language: language, Path: path})
}

// AppendLog appends a processing event to the item's log.
func (d *Document) AppendLog(sequence, process, status string, at time.Time) {
	item := d.ensureItem(sequence)
	if item.Log == nil {
		item.Log = &Log{}
	}
	item.Log.Entries = append(item.Log.Entries, Entry{
		Timestamp: at.Format(EntryTimestampLayout),
		Process:   process,
		Status:    status,
	})
}

// Image returns the most recently recorded path for an image type.
func (d *Document) Image(sequence, imageType string) (string, bool) {
	item, ok := d.Item(sequence)
	if !ok {
		return "", false
	}
	for i := len(item.Images) - 1; i >= 0; i-- {
		if item.Images[i].Type == imageType {
			return strings.TrimSpace(item.Images[i].Path), true
		}
	}
	return "", false
}

// Origin returns the origin image path of sequence.
func (d *Document) Origin(sequence string) (string, bool) {
	item, ok := d.Item(sequence)
	if !ok || item.Origin == nil {
		return "", false
	}
	origin := strings.TrimSpace(*item.Origin)
	return origin, origin != ""
}

// Entries returns the log entries of sequence.
func (d *Document) Entries(sequence string) []Entry {
	item, ok := d.Item(sequence)
	if !ok || item.Log == nil {
		return nil
	}
	return item.Log.Entries
}

func (d *Document) marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	return append(out, '\n'), nil
}
