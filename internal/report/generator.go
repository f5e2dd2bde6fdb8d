package report

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/yorozuya-cybersecurity/auditfix/internal/scanners"
	"github.com/yorozuya-cybersecurity/auditfix/internal/schema"
)

//go:embed templates/report.html.tmpl
var reportHTMLTemplate string

// ---------- Public API ----------

// LoadAuditResult reads a saved audit (plain or fix envelope) and returns the inner result
func LoadAuditResult(path string) (schema.AuditResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.AuditResult{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	out, err := schema.Parse(scanners.ExtractJSON(string(data)))
	if err != nil {
		return schema.AuditResult{}, err
	}
	return out.Unwrap(), nil
}

// WriteMarkdown stores md as report.md in outDir
func WriteMarkdown(md, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create out dir: %w", err)
	}
	mdPath := filepath.Join(outDir, "report.md")
	if err := os.WriteFile(mdPath, []byte(md), 0644); err != nil {
		return "", fmt.Errorf("write report.md: %w", err)
	}
	return mdPath, nil
}

// RenderHTML converts the Markdown report into a standalone HTML page.
// Raw HTML in the report is kept so the heading anchors survive.
func RenderHTML(md string) ([]byte, error) {
	var body bytes.Buffer
	gm := goldmark.New(goldmark.WithRendererOptions(gmhtml.WithUnsafe()))
	if err := gm.Convert([]byte(md), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	tmpl, err := template.New("report").Parse(reportHTMLTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	vm := viewModel{
		Title:       "Audit report",
		Body:        template.HTML(body.String()),
		Generator:   "auditfix",
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vm); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func GenerateHTML(md, outDir string) (string, error) {
	doc, err := RenderHTML(md)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create out dir: %w", err)
	}

	htmlPath := filepath.Join(outDir, "report.html")
	if err := os.WriteFile(htmlPath, doc, 0644); err != nil {
		return "", fmt.Errorf("write report.html: %w", err)
	}

	return htmlPath, nil
}

var ErrChromeUnavailable = errors.New("chrome/chromium not found")

// GeneratePDF prints the HTML report with headless Chrome next to htmlPath
func GeneratePDF(ctx context.Context, htmlPath string) (string, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", htmlPath, err)
	}
	target := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var pdf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(target),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if errors.Is(err, exec.ErrNotFound) {
		return "", ErrChromeUnavailable
	}
	if err != nil {
		return "", fmt.Errorf("chromedp: %w", err)
	}

	pdfPath := strings.TrimSuffix(htmlPath, ".html") + ".pdf"
	if err := os.WriteFile(pdfPath, pdf, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(pdfPath), err)
	}
	return pdfPath, nil
}

// ---------- View Model ----------

type viewModel struct {
	Title       string
	Body        template.HTML
	Generator   string
	GeneratedAt string
}
