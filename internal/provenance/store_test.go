package provenance_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"folio/internal/logging"
	"folio/internal/provenance"
	"folio/internal/services"
	"folio/internal/workitem"
)

func newStore(t *testing.T) *provenance.Store {
	t.Helper()
	fixed := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	return provenance.NewStore(t.TempDir(), logging.NewNop(), provenance.WithClock(func() time.Time { return fixed }))
}

func TestDocumentPathSanitizesIdentifiers(t *testing.T) {
	store := newStore(t)
	got := store.DocumentPath("MS Bodl. 264", "../3")
	want := filepath.Join(store.Root(), "MS_Bodl._264", "..3.xml")
	if got != want {
		t.Fatalf("DocumentPath = %q want %q", got, want)
	}
	if !strings.HasPrefix(store.DocumentPath("..", ".."), store.Root()+string(filepath.Separator)) {
		t.Fatal("dot-only identifiers must stay under the root")
	}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "Shelf A", "1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	path := store.DocumentPath("Shelf A", "1")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("skeleton not persisted: %v", err)
	}
	second, err := store.GetOrCreate(ctx, "Shelf A", "1")
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatalf("document changed on second get-or-create:\n%s\n%s", before, after)
	}
	if first.Shelfmark != "Shelf A" || second.Index != "1" || len(second.Items) != 0 {
		t.Fatalf("unexpected skeleton: %+v", second)
	}
}

func TestMutationsAccumulate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	c := workitem.Case{Shelfmark: "S", Index: "2", Sequence: "7"}

	if err := store.AddItem(ctx, c, "Folio 7r", "/scans/7.tif"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := store.AddImage(ctx, c, "cropped", "/crop/7-a.png"); err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	if err := store.AddImage(ctx, c, "cropped", "/crop/7-b.png"); err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	if err := store.AddOCR(ctx, c, "text", "eng", "/ocr/7-eng-text.txt"); err != nil {
		t.Fatalf("AddOCR: %v", err)
	}
	if err := store.AppendLog(ctx, c, "crop", "Success"); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	if err := store.AppendLog(ctx, c, "ocr", "Success"); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}

	doc, exists, err := store.Load(ctx, "S", "2")
	if err != nil || !exists {
		t.Fatalf("Load: exists=%v err=%v", exists, err)
	}
	item, ok := doc.Item("7")
	if !ok {
		t.Fatal("item missing")
	}
	if item.Title == nil || *item.Title != "Folio 7r" {
		t.Fatalf("unexpected title: %v", item.Title)
	}
	if len(item.Images) != 2 || len(item.OCR) != 1 {
		t.Fatalf("unexpected artifacts: %+v", item)
	}
	entries := doc.Entries("7")
	if len(entries) != 2 || entries[0].Process != "crop" || entries[1].Process != "ocr" {
		t.Fatalf("unexpected log: %+v", entries)
	}
	if entries[0].Timestamp != "2024-05-01T09:30:00.000000" {
		t.Fatalf("unexpected timestamp: %q", entries[0].Timestamp)
	}

	image, ok, err := store.Image(ctx, c, "cropped")
	if err != nil || !ok || image != "/crop/7-b.png" {
		t.Fatalf("Image = %q ok=%v err=%v", image, ok, err)
	}
	origin, ok, err := store.Origin(ctx, c)
	if err != nil || !ok || origin != "/scans/7.tif" {
		t.Fatalf("Origin = %q ok=%v err=%v", origin, ok, err)
	}
	if _, ok, _ := store.Image(ctx, c, "thumbnail"); ok {
		t.Fatal("unexpected thumbnail image")
	}
}

func TestReadsDoNotCreateDocuments(t *testing.T) {
	store := newStore(t)
	c := workitem.Case{Shelfmark: "none", Index: "0", Sequence: "1"}
	if _, ok, err := store.Origin(context.Background(), c); err != nil || ok {
		t.Fatalf("Origin on missing doc: ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(store.DocumentPath("none", "0")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no document, stat err=%v", err)
	}
}

func TestCorruptDocumentIsRegenerated(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	path := store.DocumentPath("S", "9")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("<object><item"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := workitem.Case{Shelfmark: "S", Index: "9", Sequence: "1"}
	if err := store.AppendLog(ctx, c, "crop", "Input file does not exist"); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	backup, err := os.ReadFile(path + ".corrupt")
	if err != nil || string(backup) != "<object><item" {
		t.Fatalf("expected corrupt bytes preserved, got %q err=%v", backup, err)
	}
	doc, exists, err := store.Load(ctx, "S", "9")
	if err != nil || !exists {
		t.Fatalf("Load: exists=%v err=%v", exists, err)
	}
	if len(doc.Entries("1")) != 1 {
		t.Fatalf("expected regenerated document with one entry, got %+v", doc)
	}
}

func TestLegacyDocumentsAreMerged(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	path := store.DocumentPath("L", "1")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	legacy := `<?xml version='1.0' encoding='UTF-8'?>
<object shelfmark="L" index="1"><item sequence="3"><origin>/scan/3.tif</origin><log><entry timestamp="2016-01-01T00:00:00"><process>crop</process><status>ok</status></entry></log><log><entry timestamp="2016-01-02T00:00:00"><process>ocr</process><status>ok</status></entry></log><luna id="42">meta</luna></item></object>`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	c := workitem.Case{Shelfmark: "L", Index: "1", Sequence: "3"}
	if err := store.AppendLog(ctx, c, "crop", "Success"); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	doc, _, err := store.Load(ctx, "L", "1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(doc.Entries("3")); got != 3 {
		t.Fatalf("expected 3 merged entries, got %d", got)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `<luna id="42">meta</luna>`) {
		t.Fatalf("unmodelled element lost:\n%s", data)
	}
}

func TestLegacyItemTextBecomesTitle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	path := store.DocumentPath("L", "2")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	legacy := `<?xml version='1.0' encoding='UTF-8'?>
<object shelfmark="L" index="2"><item sequence="1">Folio 1 recto<origin>/scan/1.tif</origin></item><item sequence="2">stale<title>Folio 1 verso</title></item></object>`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	c := workitem.Case{Shelfmark: "L", Index: "2", Sequence: "1"}
	if err := store.AddImage(ctx, c, "cropped", "/crop/1.png"); err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	doc, _, err := store.Load(ctx, "L", "2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	titles := map[string]string{"1": "Folio 1 recto", "2": "Folio 1 verso"}
	for seq, want := range titles {
		item, ok := doc.Item(seq)
		if !ok || item.Title == nil || *item.Title != want {
			t.Fatalf("item %s title = %v, want %q", seq, item, want)
		}
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "<title>Folio 1 recto</title>") || strings.Contains(string(data), "stale") {
		t.Fatalf("legacy text not migrated:\n%s", data)
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	const writers = 12

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := workitem.Case{Shelfmark: "race", Index: "1", Sequence: fmt.Sprintf("%d", i%3)}
			if err := store.AppendLog(ctx, c, "crop", fmt.Sprintf("entry %d", i)); err != nil {
				t.Errorf("AppendLog %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	doc, _, err := store.Load(ctx, "race", "1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	total := 0
	for _, seq := range []string{"0", "1", "2"} {
		total += len(doc.Entries(seq))
	}
	if total != writers {
		t.Fatalf("expected %d entries, got %d", writers, total)
	}
}

func TestUpdateErrorSkipsWrite(t *testing.T) {
	store := newStore(t)
	boom := errors.New("boom")
	err := store.Update(context.Background(), "S", "1", func(d *provenance.Document) error {
		d.SetTitle("1", "never saved")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	if _, exists, _ := store.Load(context.Background(), "S", "1"); exists {
		t.Fatal("document should not be written when mutation fails")
	}
}

func TestWriteFailureIsClassified(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file-not-dir")
	if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := provenance.NewStore(root, logging.NewNop())
	err := store.AppendLog(context.Background(), workitem.Case{Shelfmark: "S", Index: "1", Sequence: "1"}, "crop", "x")
	if !errors.Is(err, services.ErrProvenanceWrite) {
		t.Fatalf("expected provenance write error, got %v", err)
	}
}
