package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/oklog/ulid/v2"

	"github.com/dmitrysluch/eva-table-reactor/config"
)

// ErrNotRodInstance is returned when a foreign handle is passed to RodHost
var ErrNotRodInstance = errors.New("instance was not opened by this host")

// RodHost renders instances as tabs of a headless Chrome
type RodHost struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
	logger  *slog.Logger
	open    atomic.Int32
}

type rodInstance struct {
	id        string
	url       string
	page      *rod.Page
	closeOnce sync.Once
}

func (i *rodInstance) ID() string  { return i.id }
func (i *rodInstance) URL() string { return i.url }

func (i *rodInstance) HTML(ctx context.Context) (string, error) {
	html, err := i.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// NewRodHost launches (or finds) a Chrome binary and connects to it
func NewRodHost(cfg config.BrowserConfig, logger *slog.Logger) (*RodHost, error) {
	if logger == nil {
		logger = slog.Default()
	}

	userDataDir := cfg.UserDataDir
	if userDataDir != "" {
		if err := os.MkdirAll(userDataDir, 0755); err != nil {
			logger.Warn("failed to create browser data directory", "dir", userDataDir, "error", err)
			userDataDir = ""
		}
	}

	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true).
		Leakless(false).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-breakpad").
		Set("disable-popup-blocking").
		Set("disable-sync").
		Set("disable-translate").
		Set("mute-audio").
		Set("memory-pressure-off").
		Set("disable-features", "TranslateUI,BlinkGenPropertyTrees")
	if userDataDir != "" {
		l = l.UserDataDir(userDataDir)
	}

	if bin := findChrome(cfg.Bin); bin != "" {
		l = l.Bin(bin)
	}

	browserURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger.Info("browser connected", "headless", cfg.Headless, "stealth", cfg.Stealth)
	return &RodHost{browser: browser, cfg: cfg, logger: logger}, nil
}

// findChrome returns the configured binary or the first known install location.
// An empty result lets rod download its own Chromium.
func findChrome(configured string) string {
	if configured != "" {
		return configured
	}

	var candidates []string
	if runtime.GOOS == "windows" {
		candidates = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
		if username := os.Getenv("USERNAME"); username != "" {
			candidates = append(candidates, `C:\Users\`+username+`\AppData\Local\Google\Chrome\Application\chrome.exe`)
		}
	} else {
		candidates = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Open creates a tab and starts navigating it to url
func (h *RodHost) Open(ctx context.Context, url string) (Instance, error) {
	var page *rod.Page
	var err error
	if h.cfg.Stealth {
		page, err = stealth.Page(h.browser)
	} else {
		page, err = h.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.Context(ctx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	inst := &rodInstance{
		id:   "inst-" + ulid.Make().String(),
		url:  url,
		page: page,
	}
	n := h.open.Add(1)
	h.logger.Debug("instance opened", "instance", inst.id, "url", url, "open", n)
	return inst, nil
}

// WaitReady waits for the load event, then for the DOM to settle
func (h *RodHost) WaitReady(ctx context.Context, inst Instance) error {
	ri, ok := inst.(*rodInstance)
	if !ok {
		return ErrNotRodInstance
	}

	page := ri.page.Context(ctx)
	if h.cfg.ReadyTimeout > 0 {
		page = page.Timeout(h.cfg.ReadyTimeout)
	}

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for %s to load: %w", ri.url, err)
	}

	// Pages that keep animating never settle, their loaded DOM is used as is
	settle := h.cfg.Settle
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	if err := page.WaitStable(settle); err != nil {
		h.logger.Warn("page did not settle", "url", ri.url, "error", err)
	}
	return nil
}

// Close closes the tab behind inst
func (h *RodHost) Close(_ context.Context, inst Instance) error {
	ri, ok := inst.(*rodInstance)
	if !ok {
		return ErrNotRodInstance
	}

	var err error
	ri.closeOnce.Do(func() {
		err = ri.page.Close()
		n := h.open.Add(-1)
		h.logger.Debug("instance closed", "instance", ri.id, "open", n)
	})
	if err != nil {
		return fmt.Errorf("failed to close page: %w", err)
	}
	return nil
}

// Shutdown closes the browser
func (h *RodHost) Shutdown() error {
	if h.browser != nil {
		return h.browser.Close()
	}
	return nil
}
