// Package browser renders property pages for the site adapters, either in a
// local headless Chrome or through the ScrapingBee rendering API.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"house-prices/internal/models"
	"house-prices/internal/sites"
)

// DefaultRenderTimeout bounds a wait condition when the caller sets none
const DefaultRenderTimeout = 20 * time.Second

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Runs before any page script so bot checks see an ordinary browser
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
Object.defineProperty(navigator, 'languages', {get: () => ['en-NZ', 'en']});
`

// Chrome renders pages in headless Chrome, one tab per call
type Chrome struct {
	headless bool
	timeout  time.Duration

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChrome creates a renderer; call Start before use
func NewChrome(headless bool, renderTimeout time.Duration) *Chrome {
	if renderTimeout <= 0 {
		renderTimeout = DefaultRenderTimeout
	}
	return &Chrome{headless: headless, timeout: renderTimeout}
}

// Start launches the browser process
func (c *Chrome) Start() error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		// Anti-detection flags
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// An empty run starts the process so a missing binary fails here
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("starting chrome: %w", err)
	}

	c.allocCancel = allocCancel
	c.browserCtx = browserCtx
	c.browserCancel = browserCancel
	return nil
}

// Stop closes the browser
func (c *Chrome) Stop() {
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
}

// Render loads url and captures the DOM once wait holds
func (c *Chrome) Render(ctx context.Context, url string, wait sites.Wait) (sites.Page, error) {
	tab, done, err := c.tab(ctx)
	if err != nil {
		return sites.Page{}, err
	}
	defer done()

	if err := c.navigate(ctx, tab, url); err != nil {
		return sites.Page{}, err
	}
	if err := c.waitFor(ctx, tab, url, wait); err != nil {
		return sites.Page{}, err
	}
	return c.capture(ctx, tab, url)
}

// Type loads the search page, enters text into the input and captures the
// DOM once the result condition holds
func (c *Chrome) Type(ctx context.Context, req sites.TypeRequest) (sites.Page, error) {
	tab, done, err := c.tab(ctx)
	if err != nil {
		return sites.Page{}, err
	}
	defer done()

	if err := c.navigate(ctx, tab, req.URL); err != nil {
		return sites.Page{}, err
	}
	if err := c.waitFor(ctx, tab, req.URL, sites.Wait{Selector: req.Input}); err != nil {
		return sites.Page{}, err
	}
	err = chromedp.Run(tab,
		chromedp.Click(req.Input, chromedp.ByQuery),
		chromedp.SendKeys(req.Input, req.Text, chromedp.ByQuery),
	)
	if err != nil {
		return sites.Page{}, classify(ctx, err, models.KindNavigation, "typing into %s on %s", req.Input, req.URL)
	}
	if err := c.waitFor(ctx, tab, req.URL, req.Wait); err != nil {
		return sites.Page{}, err
	}
	return c.capture(ctx, tab, req.URL)
}

// tab opens a fresh tab bound to the caller's context
func (c *Chrome) tab(ctx context.Context) (context.Context, func(), error) {
	if c.browserCtx == nil {
		return nil, nil, errors.New("chrome renderer not started")
	}
	tab, cancel := chromedp.NewContext(c.browserCtx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		tab, cancelDeadline = context.WithDeadline(tab, deadline)
		prev := cancel
		cancel = func() { cancelDeadline(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return tab, func() { stop(); cancel() }, nil
}

func (c *Chrome) navigate(ctx, tab context.Context, url string) error {
	err := chromedp.Run(tab,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
	)
	if err != nil {
		return classify(ctx, err, models.KindNavigation, "loading %s", url)
	}
	return nil
}

func (c *Chrome) waitFor(ctx, tab context.Context, url string, wait sites.Wait) error {
	if wait.Selector == "" {
		return nil
	}
	timeout := wait.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	waitCtx, cancel := context.WithTimeout(tab, timeout)
	defer cancel()

	err := chromedp.Run(waitCtx, chromedp.WaitVisible(wait.Selector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if wait.Optional {
		log.Printf("Selector %s not visible on %s after %s, capturing anyway", wait.Selector, url, timeout)
		return nil
	}
	return classify(ctx, err, models.KindRenderTimeout, "waiting for %s on %s", wait.Selector, url)
}

func (c *Chrome) capture(ctx, tab context.Context, url string) (sites.Page, error) {
	var html, location string
	err := chromedp.Run(tab,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		return sites.Page{}, classify(ctx, err, models.KindNavigation, "reading %s", url)
	}
	if location == "" {
		location = url
	}
	return sites.Page{URL: location, HTML: html}, nil
}

// classify attributes a renderer failure to the caller's context when it
// ended, and to kind otherwise
func classify(ctx context.Context, err error, kind models.Kind, format string, args ...any) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var me *models.Error
	if errors.As(err, &me) {
		return err
	}
	return models.Wrap(kind, err, fmt.Sprintf(format, args...))
}
