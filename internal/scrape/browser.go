package scrape

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
)

const scrollJS = `window.scrollTo(0, document.body ? document.body.scrollHeight : 0); document.body ? document.body.scrollHeight : 0`

// BrowserOptions configures the headless browser.
type BrowserOptions struct {
	// ScrollCycles is the number of scroll-to-bottom passes after load.
	ScrollCycles int
	// ScrollWait is the pause after each scroll.
	ScrollWait time.Duration
	// SettleWait is the pause before the DOM is captured.
	SettleWait time.Duration
	// ExecPath overrides the Chrome binary.
	ExecPath string
}

// BrowserScraper renders pages in headless Chrome, scrolling to trigger lazy
// content. One browser process is shared by all Scrape calls; every call
// opens its own tab. Close must be called to release the process.
type BrowserScraper struct {
	opts BrowserOptions

	allocCtx    context.Context
	allocCancel context.CancelFunc

	once          sync.Once
	browserCtx    context.Context
	browserCancel context.CancelFunc
	startErr      error
}

// NewBrowserScraper prepares a browser allocator. Chrome is started lazily on
// the first Scrape.
func NewBrowserScraper(opts BrowserOptions) *BrowserScraper {
	if opts.ScrollCycles <= 0 {
		opts.ScrollCycles = 3
	}
	if opts.ScrollWait <= 0 {
		opts.ScrollWait = time.Second
	}
	if opts.SettleWait <= 0 {
		opts.SettleWait = 2 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	return &BrowserScraper{
		opts:        opts,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}
}

func (b *BrowserScraper) Name() string { return "browser" }

func (b *BrowserScraper) Supports(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (b *BrowserScraper) start() error {
	b.once.Do(func() {
		b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)
		if err := chromedp.Run(b.browserCtx); err != nil {
			b.startErr = eris.Wrap(err, "browser: start chrome")
		}
	})
	return b.startErr
}

// Scrape renders req.URL in a new tab. The tab is closed when ctx ends.
func (b *BrowserScraper) Scrape(ctx context.Context, req Request) (*Result, error) {
	if err := b.start(); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var (
		title, location, outer string
		height                 float64
	)

	actions := make([]chromedp.Action, 0, 6+2*b.opts.ScrollCycles)
	if req.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(req.UserAgent))
	}
	actions = append(actions,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	for i := 0; i < b.opts.ScrollCycles; i++ {
		actions = append(actions, chromedp.Evaluate(scrollJS, &height), chromedp.Sleep(b.opts.ScrollWait))
	}
	actions = append(actions,
		chromedp.Sleep(b.opts.SettleWait),
		chromedp.Title(&title),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &outer, chromedp.ByQuery),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "browser: render canceled")
		}
		return nil, eris.Wrap(err, "browser: render")
	}

	if blocked, blockType := DetectBlock(nil, []byte(outer)); blocked && blockType != BlockJSShell {
		return nil, eris.Wrapf(ErrBlocked, "browser: %s", blockType)
	}

	if location == "" {
		location = req.URL
	}
	doc, err := ParseHTML(location, []byte(outer))
	if err != nil {
		return nil, err
	}

	zap.L().Debug("browser: rendered page",
		zap.String("url", location),
		zap.Int("text_len", len(doc.Text)),
		zap.Float64("scroll_height", height),
	)

	if title == "" {
		title = doc.Title
	}
	return &Result{
		Page: model.CrawledPage{
			URL:        location,
			Title:      title,
			Text:       doc.Text,
			HTML:       outer,
			Links:      doc.Links,
			StatusCode: 200,
			Source:     "browser",
		},
		Source: "browser",
	}, nil
}

// Close shuts down the browser process.
func (b *BrowserScraper) Close() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	b.allocCancel()
}
