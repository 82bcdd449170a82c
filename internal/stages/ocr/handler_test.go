package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/provenance"
	"folio/internal/services"
	"folio/internal/stage"
	"folio/internal/stages/ocr"
	"folio/internal/testsupport"
	"folio/internal/workitem"
)

type fakeEngine struct {
	mu       sync.Mutex
	calls    []string
	checkErr error
	fail     map[string]error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Check(context.Context) error { return f.checkErr }

func (f *fakeEngine) Recognize(_ context.Context, imagePath, language string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, language)
	if err := f.fail[language]; err != nil {
		return "", err
	}
	return fmt.Sprintf("text of %s in %s", filepath.Base(imagePath), language), nil
}

func TestPrepareChecklist(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := ocr.NewHandler(cfg, nil, &fakeEngine{}, logging.NewNop())
	base := testsupport.BaseDir(cfg)
	in := filepath.Join(base, "crop", "p1.png")
	testsupport.WriteFile(t, in, 8)
	out := filepath.Join(base, "text")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		raw    string
		marker error
		reason string
	}{
		{"missing", `{"infile": "` + in + `"}`, services.ErrValidation, workitem.ReasonOCRMissing},
		{"input absent", fmt.Sprintf(`{"infile": %q, "outpath": %q}`, in+".x", out), services.ErrNotFound, workitem.ReasonInputMissing},
		{"outpath file", fmt.Sprintf(`{"infile": %q, "outpath": %q}`, in, in), services.ErrDirectory, workitem.ReasonOutputNotDir},
		{"dicts not list", fmt.Sprintf(`{"infile": %q, "outpath": %q, "dicts": "eng"}`, in, out), services.ErrValidation, workitem.ReasonDictsNotList},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Prepare(context.Background(), tt.raw)
			if !errors.Is(err, tt.marker) || services.Reason(err) != tt.reason {
				t.Fatalf("expected %v/%q, got %v", tt.marker, tt.reason, err)
			}
		})
	}
}

func TestExecuteWritesOneFilePerDictionary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := &fakeEngine{}
	handler := ocr.NewHandler(cfg, nil, engine, logging.NewNop())
	base := testsupport.BaseDir(cfg)
	in := filepath.Join(base, "crop", "p1.png")
	testsupport.WriteFile(t, in, 8)
	out := filepath.Join(base, "text")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}

	job, err := handler.Prepare(context.Background(), fmt.Sprintf(`{"infile": %q, "outpath": %q}`, in, out))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	outcome, err := handler.Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Join(engine.calls, ",") != "eng,enm" {
		t.Fatalf("expected default dictionaries, got %v", engine.calls)
	}
	if len(outcome.Artifacts) != 2 {
		t.Fatalf("unexpected artifacts: %+v", outcome.Artifacts)
	}
	for _, artifact := range outcome.Artifacts {
		if artifact.Kind != stage.ArtifactOCR || artifact.Type != "text" {
			t.Fatalf("unexpected artifact: %+v", artifact)
		}
		want := filepath.Join(out, "p1.png-"+artifact.Language+"-text.txt")
		if artifact.Path != want {
			t.Fatalf("path = %q want %q", artifact.Path, want)
		}
		data, err := os.ReadFile(want)
		if err != nil || !strings.Contains(string(data), artifact.Language) {
			t.Fatalf("unexpected text file: %q err=%v", data, err)
		}
	}
}

func TestExecuteFailureCarriesEngineMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := &fakeEngine{fail: map[string]error{"lat": errors.New("Failed loading language 'lat'")}}
	handler := ocr.NewHandler(cfg, nil, engine, logging.NewNop())
	base := testsupport.BaseDir(cfg)
	in := filepath.Join(base, "p.png")
	testsupport.WriteFile(t, in, 8)

	job, err := handler.Prepare(context.Background(), fmt.Sprintf(`{"infile": %q, "outpath": %q, "dicts": ["lat"]}`, in, base))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	_, err = handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrProcessing) || services.Reason(err) != "Failed loading language 'lat'" {
		t.Fatalf("unexpected failure: %v", err)
	}
}

func TestCaseModeUsesCroppedImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := provenance.NewStore(cfg.Paths.ProvenanceDir, logging.NewNop())
	handler := ocr.NewHandler(cfg, store, &fakeEngine{}, logging.NewNop())
	ctx := context.Background()

	cropped := filepath.Join(cfg.Paths.CropDir, "S", "1", "4.png")
	testsupport.WriteFile(t, cropped, 8)
	c := workitem.Case{Shelfmark: "S", Index: "1", Sequence: "4"}
	if err := store.AddImage(ctx, c, "cropped", cropped); err != nil {
		t.Fatalf("AddImage: %v", err)
	}

	job, err := handler.Prepare(ctx, `{"shelfmark": "S", "index": "1", "sequence": 4, "dicts": ["eng"]}`)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	outcome, err := handler.Execute(ctx, job)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := filepath.Join(cfg.Paths.OCRDir, "S", "1", "4.png-eng-text.txt")
	if outcome.Artifacts[0].Path != want {
		t.Fatalf("path = %q want %q", outcome.Artifacts[0].Path, want)
	}

	_, err = handler.Prepare(ctx, `{"shelfmark": "S", "index": "1", "sequence": 5}`)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected missing source rejection, got %v", err)
	}
}

func TestHealthCheckReportsMissingEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := ocr.NewHandler(cfg, nil, &fakeEngine{checkErr: errors.New(`binary "tesseract" not found`)}, nil)
	h := handler.HealthCheck(context.Background())
	if h.Ready || !strings.HasPrefix(h.Detail, "No Tesseract found! - ") {
		t.Fatalf("unexpected health: %+v", h)
	}
}

func TestCLIEngineRunsBinary(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "tesseract")
	testsupport.WriteScript(t, stub, "#!/bin/sh\n[ \"$2\" = stdout ] || exit 3\necho \"recognized $1 as $4\"\n")

	engine := ocr.NewCLIEngine(stub)
	if err := engine.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	text, err := engine.Recognize(context.Background(), "/img/p.png", "enm")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if strings.TrimSpace(text) != "recognized /img/p.png as enm" {
		t.Fatalf("unexpected output %q", text)
	}

	failing := filepath.Join(binDir, "broken")
	testsupport.WriteScript(t, failing, "#!/bin/sh\necho 'Error opening data file' >&2\nexit 1\n")
	if _, err := ocr.NewCLIEngine(failing).Recognize(context.Background(), "x", "eng"); err == nil || !strings.Contains(err.Error(), "Error opening data file") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if err := ocr.NewCLIEngine("definitely-not-tesseract").Check(context.Background()); err == nil {
		t.Fatal("expected missing binary error")
	}
}

func TestNewEngineSelection(t *testing.T) {
	cfg := config.Default()
	engine, err := ocr.NewEngine(&cfg)
	if err != nil || engine.Name() != "tesseract" {
		t.Fatalf("unexpected default engine: %v %v", engine, err)
	}
	cfg.OCR.Engine = config.EngineGosseract
	if engine, err = ocr.NewEngine(&cfg); err != nil || engine.Name() != "gosseract" {
		t.Fatalf("unexpected gosseract engine: %v %v", engine, err)
	}
	cfg.OCR.Engine = "cuneiform"
	if _, err := ocr.NewEngine(&cfg); err == nil {
		t.Fatal("expected unknown engine error")
	}
}
