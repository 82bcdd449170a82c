// Package deps checks the external tools folio workers shell out to.
package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"folio/internal/config"
)

// Requirement defines an external dependency folio relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Requirements lists the binaries the configured stages need.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	reqs := []Requirement{{
		Name:        "folio-worker",
		Command:     cfg.Supervisor.WorkerBinary,
		Description: "Launched by 'folio worker start'",
		Optional:    true,
	}}
	if cfg.OCR.Engine == config.EngineTesseractCLI {
		reqs = append(reqs, Requirement{
			Name:        "Tesseract",
			Command:     cfg.OCR.TesseractBinary,
			Description: "Runs OCR for the ocr stage",
		})
	}
	return reqs
}

const listLangsTimeout = 10 * time.Second

// TesseractLanguages runs "<binary> --list-langs" and returns the installed
// language packs.
func TesseractLanguages(ctx context.Context, binary string) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, listLangsTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "--list-langs").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s --list-langs: %w", binary, err)
	}
	return parseLanguageList(string(out)), nil
}

// MissingLanguages returns the entries of want that are not in have.
func MissingLanguages(have, want []string) []string {
	installed := make(map[string]struct{}, len(have))
	for _, lang := range have {
		installed[lang] = struct{}{}
	}
	var missing []string
	for _, lang := range want {
		if _, ok := installed[lang]; !ok {
			missing = append(missing, lang)
		}
	}
	return missing
}

func parseLanguageList(out string) []string {
	var langs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "list of available languages") {
			continue
		}
		langs = append(langs, line)
	}
	return langs
}
