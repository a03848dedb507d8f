// Package ocr turns uploaded receipts into invoice-entry candidates.
package ocr

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// ExtractText runs OCR on the file at path. PDFs are rasterized one page
// at a time with pdftoppm before recognition; images go straight to
// tesseract.
func ExtractText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractFromPDF(path)
	}
	return recognizeImage(path)
}

func recognizeImage(imgPath string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetImage(imgPath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize image: %w", err)
	}
	return text, nil
}

func extractFromPDF(pdfPath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "fima-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pages, err := rasterizePDF(pdfPath, tmpDir)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for _, page := range pages {
		text, err := recognizeImage(page)
		if err != nil {
			continue
		}
		full.WriteString(text)
		full.WriteString("\n")
	}
	return full.String(), nil
}

func rasterizePDF(pdfPath, outDir string) ([]string, error) {
	outPrefix := filepath.Join(outDir, "page")
	cmd := exec.Command("pdftoppm", "-png", pdfPath, outPrefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %v: %s", err, stderr.String())
	}
	pages, err := filepath.Glob(filepath.Join(outDir, "page*.png"))
	if err != nil {
		return nil, fmt.Errorf("glob pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", pdfPath)
	}
	return pages, nil
}
