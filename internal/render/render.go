// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render converts merged HTML documents to PDF with whichever
// rendering tool is installed.
package render

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

const binWkhtmltopdf = "wkhtmltopdf"

// chromiumBins are probed in order for the chromium-family engine.
var chromiumBins = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// Engine renders an HTML file to a PDF.
type Engine interface {
	// Name returns the engine name ("wkhtmltopdf" or "chromium").
	Name() string

	// Available reports whether the engine's binary exists on PATH.
	Available() bool

	// Render converts the HTML file at src into the PDF at dest.
	Render(src, dest string) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

var defaultExec executor = &osExecutor{}

// wkhtmltopdfEngine drives the wkhtmltopdf binary.
type wkhtmltopdfEngine struct {
	exec executor
}

func (e *wkhtmltopdfEngine) Name() string { return binWkhtmltopdf }

func (e *wkhtmltopdfEngine) Available() bool {
	_, err := e.exec.LookPath(binWkhtmltopdf)
	return err == nil
}

func (e *wkhtmltopdfEngine) Render(src, dest string) error {
	args := []string{
		"--page-size", "Letter",
		"--encoding", "UTF-8",
		"--enable-local-file-access",
		"--quiet",
		src,
		dest,
	}
	if out, err := e.exec.Run(binWkhtmltopdf, args...); err != nil {
		return fmt.Errorf("wkhtmltopdf failed: %w: %s", err, out)
	}
	return nil
}

// chromiumEngine drives a headless chromium-family browser. The binaries
// differ by distribution; the first one found on PATH is used.
type chromiumEngine struct {
	exec executor
}

func (e *chromiumEngine) Name() string { return "chromium" }

func (e *chromiumEngine) binary() string {
	for _, name := range chromiumBins {
		if path, err := e.exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func (e *chromiumEngine) Available() bool {
	return e.binary() != ""
}

func (e *chromiumEngine) Render(src, dest string) error {
	bin := e.binary()
	if bin == "" {
		return fmt.Errorf("no chromium binary on PATH")
	}

	// Chromium resolves file: URLs and --print-to-pdf relative to its own
	// working directory, so both paths must be absolute.
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("resolving source path: %w", err)
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolving output path: %w", err)
	}

	args := []string{
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--print-to-pdf=" + absDest,
		"file://" + absSrc,
	}
	if out, err := e.exec.Run(bin, args...); err != nil {
		return fmt.Errorf("chromium PDF export failed: %w: %s", err, out)
	}
	return nil
}

// DetectEngine returns the engine named by cfg, or probes wkhtmltopdf and
// then the chromium family when cfg asks for auto-detection.
func DetectEngine(cfg types.RenderConfig) (Engine, error) {
	return detectEngine(cfg, defaultExec)
}

func detectEngine(cfg types.RenderConfig, exec executor) (Engine, error) {
	switch cfg.Engine {
	case types.EngineWkhtmltopdf:
		return requireAvailable(&wkhtmltopdfEngine{exec: exec})
	case types.EngineChromium:
		return requireAvailable(&chromiumEngine{exec: exec})
	case types.EngineAuto, "":
		wk := &wkhtmltopdfEngine{exec: exec}
		if wk.Available() {
			return wk, nil
		}
		ch := &chromiumEngine{exec: exec}
		if ch.Available() {
			return ch, nil
		}
		return nil, fmt.Errorf(
			"no rendering tool available: neither %s nor a chromium browser found on PATH",
			binWkhtmltopdf,
		)
	default:
		return nil, fmt.Errorf("unknown render engine %q", cfg.Engine)
	}
}

func requireAvailable(e Engine) (Engine, error) {
	if !e.Available() {
		return nil, fmt.Errorf("render engine %s not found on PATH", e.Name())
	}
	return e, nil
}
