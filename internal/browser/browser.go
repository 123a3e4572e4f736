// Package browser is a thin coordinator over a headless Chrome driven with
// go-rod. One browser and one page are lazily initialized and reused across
// requests; callers are expected to serialize access. Console output,
// page errors and failed requests feed a bounded ring that navigation
// resets.
package browser

import (
	"bytes"
	"fmt"
	"image/png"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

type state int

const (
	stateUninitialized state = iota
	stateReady
)

// codespaceURL rewrites a remote-workspace host to the local port it
// forwards, so agents can paste forwarded URLs verbatim.
var codespaceURL = regexp.MustCompile(`^https://[\w-]+-(\d+)\.app\.github\.dev(/.*)?$`)

// Coordinator owns the single browser context and page.
type Coordinator struct {
	cfg config.BrowserConfig

	mu      sync.Mutex
	state   state
	browser *rod.Browser
	page    *rod.Page
	console *ConsoleRing
}

// New creates an uninitialized coordinator; the browser launches on first use.
func New(cfg config.BrowserConfig) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		console: NewConsoleRing(cfg.ConsoleRingSize),
	}
}

// Console exposes the log ring.
func (c *Coordinator) Console() *ConsoleRing { return c.console }

// NormalizeURL rewrites known remote-workspace hosts to localhost.
func NormalizeURL(raw string) string {
	if m := codespaceURL.FindStringSubmatch(raw); m != nil {
		path := m[2]
		if path == "" {
			path = "/"
		}
		return fmt.Sprintf("http://localhost:%s%s", m[1], path)
	}
	return raw
}

// ensureReady launches the browser and page on first use. Caller holds mu.
func (c *Coordinator) ensureReady() error {
	if c.state == stateReady {
		return nil
	}

	controlURL, err := launcher.New().Headless(c.cfg.Headless).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		return fmt.Errorf("create page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             c.cfg.ViewportWidth,
		Height:            c.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		slog.Warn("failed to set viewport", "error", err)
	}

	c.attachListeners(page)

	c.browser = browser
	c.page = page
	c.state = stateReady
	slog.Info("browser ready", "headless", c.cfg.Headless)
	return nil
}

// attachListeners wires CDP events into the console ring.
func (c *Coordinator) attachListeners(page *rod.Page) {
	go page.EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			c.console.Push(protocol.ConsoleEntry{
				Type:      string(ev.Type),
				Text:      stringifyConsoleArgs(ev.Args),
				Timestamp: time.Now().UTC(),
			})
		},
		func(ev *proto.RuntimeExceptionThrown) {
			entry := protocol.ConsoleEntry{
				Type:      "pageerror",
				Text:      ev.ExceptionDetails.Text,
				Timestamp: time.Now().UTC(),
			}
			if ev.ExceptionDetails.Exception != nil {
				entry.Text = ev.ExceptionDetails.Exception.Description
			}
			if ev.ExceptionDetails.StackTrace != nil && len(ev.ExceptionDetails.StackTrace.CallFrames) > 0 {
				frame := ev.ExceptionDetails.StackTrace.CallFrames[0]
				entry.Location = fmt.Sprintf("%s:%d", frame.URL, frame.LineNumber)
			}
			c.console.Push(entry)
		},
		func(ev *proto.NetworkLoadingFailed) {
			c.console.Push(protocol.ConsoleEntry{
				Type:      "requestfailed",
				Text:      ev.ErrorText,
				Timestamp: time.Now().UTC(),
			})
		},
	)()
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if arg.Value.Val() != nil {
			parts = append(parts, fmt.Sprintf("%v", arg.Value.Val()))
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}

// Navigate clears the console ring, rewrites the URL and loads it.
func (c *Coordinator) Navigate(url string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureReady(); err != nil {
		return "", err
	}

	target := NormalizeURL(url)
	c.console.Reset()

	page := c.page.Timeout(c.cfg.NavTimeout())
	if err := page.Navigate(target); err != nil {
		return "", fmt.Errorf("navigate %s: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", target, err)
	}
	slog.Info("🌐 navigated", "url", target)
	return target, nil
}

// ScreenshotOptions selects what to capture.
type ScreenshotOptions struct {
	FullPage bool
	Selector string
	MaxWidth int // 0 = no downscale
}

// Screenshot returns PNG bytes of the page, viewport or a single element,
// optionally downscaled to MaxWidth.
func (c *Coordinator) Screenshot(opts ScreenshotOptions) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureReady(); err != nil {
		return nil, err
	}

	var data []byte
	var err error
	switch {
	case opts.Selector != "":
		el, elErr := c.page.Timeout(c.cfg.NavTimeout()).Element(opts.Selector)
		if elErr != nil {
			return nil, fmt.Errorf("element %q not found: %w", opts.Selector, elErr)
		}
		data, err = el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	default:
		data, err = c.page.Screenshot(opts.FullPage, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}

	maxWidth := opts.MaxWidth
	if maxWidth == 0 {
		maxWidth = c.cfg.ScreenshotMaxWidth
	}
	if maxWidth > 0 {
		data, err = downscale(data, maxWidth)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// downscale shrinks a PNG to at most maxWidth, preserving aspect ratio.
func downscale(data []byte, maxWidth int) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	if img.Bounds().Dx() <= maxWidth {
		return data, nil
	}
	resized := imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Evaluate runs a script in the page and returns its JSON value.
func (c *Coordinator) Evaluate(script string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureReady(); err != nil {
		return nil, err
	}

	obj, err := c.page.Timeout(c.cfg.NavTimeout()).Eval(script)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return obj.Value.Val(), nil
}

// Click dispatches a left click on the first element matching selector.
func (c *Coordinator) Click(selector string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureReady(); err != nil {
		return err
	}

	el, err := c.page.Timeout(c.cfg.NavTimeout()).Element(selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Type focuses the element and sends keystrokes.
func (c *Coordinator) Type(selector, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureReady(); err != nil {
		return err
	}

	el, err := c.page.Timeout(c.cfg.NavTimeout()).Element(selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", selector, err)
	}
	return el.Input(text)
}

// WaitFor blocks until the element reaches the requested state:
// attached, visible (default) or hidden.
func (c *Coordinator) WaitFor(selector, state string, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureReady(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = c.cfg.NavTimeout()
	}

	page := c.page.Timeout(timeout)
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", selector, err)
	}
	switch state {
	case "", "visible":
		return el.WaitVisible()
	case "attached":
		return nil
	case "hidden":
		return el.WaitInvisible()
	default:
		return fmt.Errorf("unknown wait state %q", state)
	}
}

// Content returns the page as HTML or extracted text.
func (c *Coordinator) Content(format string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureReady(); err != nil {
		return "", err
	}

	switch format {
	case "", "html":
		return c.page.Timeout(c.cfg.NavTimeout()).HTML()
	case "text":
		obj, err := c.page.Timeout(c.cfg.NavTimeout()).Eval(`() => document.body ? document.body.innerText : ""`)
		if err != nil {
			return "", fmt.Errorf("extract text: %w", err)
		}
		return obj.Value.String(), nil
	default:
		return "", fmt.Errorf("unknown content format %q", format)
	}
}

// Logs returns captured console entries.
func (c *Coordinator) Logs(filter string, drain bool) []protocol.ConsoleEntry {
	return c.console.Snapshot(filter, drain)
}

// Close shuts the page and browser down. A later operation relaunches.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateReady {
		return nil
	}

	if c.page != nil {
		_ = c.page.Close()
		c.page = nil
	}
	var err error
	if c.browser != nil {
		err = c.browser.Close()
		c.browser = nil
	}
	c.state = stateUninitialized
	c.console.Reset()
	slog.Info("browser closed")
	return err
}
