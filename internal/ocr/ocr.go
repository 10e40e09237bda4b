// Package ocr extracts text from scanned bill images by shelling out to
// tesseract. Identical bytes produce identical text up to the engine version.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

type Config struct {
	Tesseract   string // binary name or path, default "tesseract"
	Lang        string // default "eng"
	TessdataDir string // optional --tessdata-dir
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// WithRunner swaps the command runner; used by tests.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

var reBoxNoise = regexp.MustCompile(`(?m)^[\|\[\]_~—=]{2,}\s*$`)

// Extract runs tesseract over the image bytes (stdin → stdout) and returns
// normalized text.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	args := []string{"stdin", "stdout", "-l", e.cfg.Lang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, data, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}

	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return Normalize(txt), nil
}

// Normalize collapses OCR line noise: CRLF, trailing spaces, and runs of
// blank lines.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	outLines := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		outLines = append(outLines, l)
	}
	return strings.TrimSpace(strings.Join(outLines, "\n"))
}
