// Package screen provides the resolver's two external collaborators for
// browser-based automation: capturing the current screen as an image and
// actuating mouse and keyboard at resolved coordinates. Both sit on
// Playwright so the same session that produced a capture receives the
// click.
package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/pinpoint/pkg/geometry"
)

const (
	// DefaultViewportWidth is the capture width when none is configured.
	DefaultViewportWidth = 1280
	// DefaultViewportHeight is the capture height when none is configured.
	DefaultViewportHeight = 720
)

// SessionOptions configures a browser session.
type SessionOptions struct {
	// Headless runs the browser without a visible window.
	Headless bool
	// ViewportWidth and ViewportHeight fix the capture dimensions; zero
	// values fall back to the defaults.
	ViewportWidth  int
	ViewportHeight int
}

// Session owns one Playwright browser page. It is not safe for concurrent
// use; drive it from a single automation loop.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	width   int
	height  int
}

// withDefaults fills unset viewport dimensions.
func (o SessionOptions) withDefaults() SessionOptions {
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = DefaultViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = DefaultViewportHeight
	}
	return o
}

// NewSession installs (if needed) and starts Playwright, launches a
// Chromium browser, and opens a blank page at the configured viewport.
func NewSession(opts SessionOptions) (*Session, error) {
	opts = opts.withDefaults()

	runOpts := &playwright.RunOptions{Verbose: false, Stdout: io.Discard, Stderr: io.Discard}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("screen: install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("screen: start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("screen: launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("screen: create context: %w", err)
	}
	page, err := context.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("screen: create page: %w", err)
	}

	return &Session{
		pw:      pw,
		browser: browser,
		page:    page,
		width:   opts.ViewportWidth,
		height:  opts.ViewportHeight,
	}, nil
}

// Navigate loads a URL and waits for the load event.
func (s *Session) Navigate(url string) error {
	waitUntil := playwright.WaitUntilStateLoad
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{WaitUntil: waitUntil}); err != nil {
		return fmt.Errorf("screen: navigate to %s: %w", url, err)
	}
	return nil
}

// Capture screenshots the current viewport and decodes it to an image.
func (s *Session) Capture() (image.Image, error) {
	data, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("screen: screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("screen: decode screenshot: %w", err)
	}
	return img, nil
}

// Click presses the left mouse button at the given viewport coordinate.
func (s *Session) Click(p geometry.Point) error {
	if err := s.page.Mouse().Click(float64(p.X), float64(p.Y)); err != nil {
		return fmt.Errorf("screen: click at (%d,%d): %w", p.X, p.Y, err)
	}
	return nil
}

// MoveTo moves the pointer to the given viewport coordinate without
// clicking.
func (s *Session) MoveTo(p geometry.Point) error {
	if err := s.page.Mouse().Move(float64(p.X), float64(p.Y)); err != nil {
		return fmt.Errorf("screen: move to (%d,%d): %w", p.X, p.Y, err)
	}
	return nil
}

// TypeText types into whatever element currently has focus.
func (s *Session) TypeText(text string) error {
	if err := s.page.Keyboard().Type(text); err != nil {
		return fmt.Errorf("screen: type text: %w", err)
	}
	return nil
}

// Size returns the viewport dimensions captures are taken at.
func (s *Session) Size() (width, height int) {
	return s.width, s.height
}

// Close shuts the browser and stops Playwright.
func (s *Session) Close() error {
	var firstErr error
	if err := s.browser.Close(); err != nil {
		firstErr = fmt.Errorf("screen: close browser: %w", err)
	}
	if err := s.pw.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("screen: stop playwright: %w", err)
	}
	return firstErr
}
