package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
)

// lowTextThreshold is the extracted-text length below which a PDF is likely
// a scanned image with no embedded text layer.
const lowTextThreshold = 500

// Warning codes added by the pipeline itself (the model has its own
// vocabulary, constrained by the prompt).
const (
	WarnPDFExtractionFailed = "pdf_extraction_failed"
	WarnLowTextExtraction   = "low_text_extraction"
)

// TextExtraction is the structurally-infallible result of text extraction.
// Internal failures surface as warnings, never as errors, so a bad document
// still flows through the pipeline and ends up as a visible failed job.
type TextExtraction struct {
	Text     string
	Warnings []string
	IsPDF    bool
}

// PDFTextExtractor extracts plain text from PDF payslips using pdfcpu.
type PDFTextExtractor struct {
	tempDir string
}

// NewPDFTextExtractor creates an extractor with its own temp workspace.
func NewPDFTextExtractor() *PDFTextExtractor {
	tempDir := filepath.Join(os.TempDir(), "payslipflow-pdf")
	_ = os.MkdirAll(tempDir, 0o755)
	return &PDFTextExtractor{tempDir: tempDir}
}

// Extract converts PDF bytes to plain text. Non-PDF payloads (image uploads)
// pass through with empty text and no warnings; the analyzer attaches the
// image itself to the model request instead.
func (e *PDFTextExtractor) Extract(ctx context.Context, data []byte) TextExtraction {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return TextExtraction{IsPDF: false}
	}

	text, err := e.extractText(ctx, data)
	if err != nil {
		slog.Warn("PDF text extraction failed.", "error", err)
		return TextExtraction{IsPDF: true, Warnings: []string{WarnPDFExtractionFailed}}
	}

	result := TextExtraction{Text: text, IsPDF: true}
	if lowText(text) {
		result.Warnings = append(result.Warnings, WarnLowTextExtraction)
	}
	return result
}

// lowText reports whether extracted text is short enough to suggest a
// scanned document.
func lowText(text string) bool {
	return len(text) < lowTextThreshold
}

func (e *PDFTextExtractor) extractText(ctx context.Context, data []byte) (string, error) {
	tempFile := filepath.Join(e.tempDir, fmt.Sprintf("payslip_%d_%d.pdf", os.Getpid(), time.Now().UnixNano()))
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	defer os.Remove(tempFile)

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(e.tempDir, "pages-*")
	if err != nil {
		return "", fmt.Errorf("failed to create page output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to read page output dir: %w", err)
	}

	// Read per-page content files concurrently. A payslip is rarely more
	// than a couple of pages, but multi-page statements do occur.
	var mu sync.Mutex
	pageTexts := make(map[int]string)
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(4)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		pageNum, ok := pageNumberFromFilename(name)
		if !ok {
			continue
		}
		eg.Go(func() error {
			content, err := os.ReadFile(filepath.Join(outDir, name))
			if err != nil {
				return fmt.Errorf("failed to read page content %s: %w", name, err)
			}
			mu.Lock()
			if _, exists := pageTexts[pageNum]; !exists {
				pageTexts[pageNum] = string(content)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(text)
	}
	return builder.String(), nil
}

// pageNumberFromFilename recognizes the content file names pdfcpu emits.
func pageNumberFromFilename(name string) (int, bool) {
	var pageNum int
	if _, err := fmt.Sscanf(name, "Content_page_%d", &pageNum); err == nil {
		return pageNum, true
	}
	if _, err := fmt.Sscanf(name, "page_%d", &pageNum); err == nil {
		return pageNum, true
	}
	return 0, false
}
