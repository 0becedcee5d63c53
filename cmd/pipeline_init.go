package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/crawl"
	"github.com/sells-group/leadgen/internal/discovery"
	"github.com/sells-group/leadgen/internal/extract"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/pipeline"
	"github.com/sells-group/leadgen/internal/publish"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/internal/scrape"
	"github.com/sells-group/leadgen/internal/store"
	"github.com/sells-group/leadgen/internal/structured"
	anthropicpkg "github.com/sells-group/leadgen/pkg/anthropic"
	"github.com/sells-group/leadgen/pkg/google"
	"github.com/sells-group/leadgen/pkg/jina"
)

// pipelineEnv holds the store, broker, browser and runner needed by the
// run and serve commands.
type pipelineEnv struct {
	Store     store.Store
	Runner    *pipeline.Runner
	Publisher *publish.Publisher
	// Breakers guard the external services shared by every job.
	Breakers *resilience.ServiceBreakers

	broker  publish.Broker
	browser *scrape.BrowserScraper
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.browser != nil {
		pe.browser.Close()
	}
	if pe.broker != nil {
		if err := pe.broker.Close(); err != nil {
			zap.L().Warn("close broker", zap.Error(err))
		}
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// discoveryMode selects the sources initPipeline wires into discovery.
type discoveryMode struct {
	// Static targets are always included.
	Static []model.Target
	// Search enables the Google Places and Jina web search sources.
	Search bool
}

// initPipeline sets up the store, the scrape chain, the extraction adapter,
// discovery and the publisher, and builds the Runner. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, mode string, dm discoveryMode) (env *pipelineEnv, err error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env = &pipelineEnv{Breakers: resilience.NewServiceBreakers(resilience.NewCircuitConfig(3, 60))}
	defer func() {
		if err != nil {
			env.Close()
			env = nil
		}
	}()

	env.Store, err = openStore(ctx)
	if err != nil {
		return nil, err
	}

	var jinaClient jina.Client
	if cfg.Jina.Enabled {
		jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
		if cfg.Jina.SearchBaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		jinaClient = jina.NewClient(cfg.Jina.Key, jinaOpts...)
	}

	crawler := buildCrawler(env, jinaClient)

	claude := structured.NewClaudeService(
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		cfg.Extraction.Model,
		cfg.Extraction.MaxTokens,
	)
	adapter := structured.NewAdapter(claude, structured.Options{
		MaxAttempts:     cfg.Extraction.MaxAttempts,
		MaxContentChars: cfg.Extraction.MaxContentChars,
	}, env.Breakers.Get("extraction"))

	env.broker, err = initBroker()
	if err != nil {
		return nil, err
	}
	env.Publisher, err = initPublisher(env.broker)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Crawler: crawler,
		Extractor: extract.New(extract.Options{
			NameWindow:         cfg.Crawl.NameWindow,
			DefaultCountryCode: cfg.Pipeline.DefaultCountryCode,
		}),
		Adapter:   adapter,
		Publisher: env.Publisher,
		Recorder:  env.Store,
	}
	// A nil *Discoverer must not become a non-nil interface.
	if d := buildDiscoverer(dm, jinaClient); d != nil {
		deps.Discoverer = d
	}

	env.Runner, err = pipeline.New(deps, pipeline.Options{
		Concurrency:        cfg.Pipeline.Concurrency,
		SourceAgent:        cfg.Pipeline.SourceAgent,
		DefaultCountryCode: cfg.Pipeline.DefaultCountryCode,
	})
	if err != nil {
		return nil, eris.Wrap(err, "build pipeline")
	}
	return env, nil
}

// buildCrawler wires the scrape chain: the local fetcher first, then Jina
// Reader. Thin or client-rendered pages are re-fetched by headless Chrome
// when enabled, otherwise by Jina's browser engine.
func buildCrawler(env *pipelineEnv, jinaClient jina.Client) *crawl.Crawler {
	timeout := cfg.Crawl.PageTimeout()
	fetchers := []scrape.Scraper{scrape.NewLocalScraper(timeout)}

	var jinaScraper *scrape.JinaScraper
	if jinaClient != nil {
		jinaScraper = scrape.NewJinaScraper(jinaClient, env.Breakers.Get("jina"))
		fetchers = append(fetchers, jinaScraper)
	}
	chain := scrape.NewChain(scrape.NewPathMatcher(cfg.Crawl.ExcludePaths), fetchers...)

	opts := []crawl.Option{
		crawl.WithCache(env.Store),
		crawl.WithUserAgents(scrape.NewUserAgentRotator(cfg.Crawl.UserAgents...)),
	}
	switch {
	case cfg.Crawl.Browser:
		env.browser = scrape.NewBrowserScraper(scrape.BrowserOptions{ExecPath: cfg.Crawl.ChromePath})
		opts = append(opts, crawl.WithPatient(env.browser))
		zap.L().Info("headless browser enabled for patient fetches")
	case jinaScraper != nil:
		opts = append(opts, crawl.WithPatient(jinaScraper.Patient(timeout)))
	}

	return crawl.New(chain, crawl.Options{
		PageTimeout:        timeout,
		MaxAttempts:        cfg.Crawl.MaxAttempts,
		MaxNavigationDepth: cfg.Crawl.MaxNavigationDepth,
		MinContentChars:    cfg.Crawl.MinContentChars,
		RatePerSec:         cfg.Crawl.RatePerSec,
		CacheTTL:           cfg.Crawl.CacheTTL(),
	}, opts...)
}

// buildDiscoverer returns nil when no source is available.
func buildDiscoverer(dm discoveryMode, jinaClient jina.Client) *discovery.Discoverer {
	var sources []discovery.Source
	if len(dm.Static) > 0 {
		sources = append(sources, discovery.NewStaticSource(dm.Static))
	}
	if dm.Search {
		if cfg.Google.Key != "" {
			sources = append(sources, discovery.NewPlacesSource(google.NewClient(cfg.Google.Key), cfg.Crawl.RatePerSec))
			zap.L().Info("google places discovery enabled")
		} else {
			zap.L().Debug("LEADGEN_GOOGLE_KEY not set, Google Places discovery disabled")
		}
		if jinaClient != nil {
			sources = append(sources, discovery.NewWebSearchSource(jinaClient))
		}
	}
	if len(sources) == 0 {
		return nil
	}
	return discovery.New(discovery.Options{MaxTargets: cfg.Google.MaxResults}, sources...)
}

// initBroker connects the configured broker.
func initBroker() (publish.Broker, error) {
	switch cfg.Publish.Broker {
	case "log":
		zap.L().Info("publishing to log broker (dry run)")
		return publish.NewLogBroker(), nil
	case "kafka":
		b, err := publish.NewKafkaBroker(publish.KafkaConfig{
			Brokers: cfg.Publish.Brokers,
			Topic:   cfg.Publish.Topic,
		})
		if err != nil {
			return nil, eris.Wrap(err, "init kafka broker")
		}
		return b, nil
	default:
		return nil, eris.Errorf("unsupported broker: %s", cfg.Publish.Broker)
	}
}

func initPublisher(b publish.Broker) (*publish.Publisher, error) {
	p, err := publish.New(b, publish.Options{
		MaxAttempts:    cfg.Publish.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Publish.InitialBackoff) * time.Millisecond,
		FallbackDir:    cfg.Publish.FallbackDir,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init publisher")
	}
	return p, nil
}
