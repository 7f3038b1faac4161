// Package builder orchestrates a corpus run: fetch the roster once, then walk
// each poet's listing, parse their poems and write them in bounded batches.
package builder

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/metrics"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/pagination"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/poempage"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/roster"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/site"
)

// flushGrace bounds the final flush once the run context is canceled.
const flushGrace = 10 * time.Second

// Config controls a run.
type Config struct {
	RunID     string
	BatchSize int
	// Topic receives one PoetEvent per finished poet. Empty disables publishing.
	Topic string
	// Poets restricts the poem build to these slugs. Empty means every poet.
	Poets []string
	// OnPoetDone, when set, receives every PoetEvent whether or not it is published.
	OnPoetDone func(PoetEvent)
}

// Dropper is implemented by sinks that can wipe the whole store.
type Dropper interface {
	DropAll(ctx context.Context) error
}

// Builder runs the extraction pipeline against one sink.
type Builder struct {
	fetcher   corpus.Fetcher
	sink      corpus.Sink
	publisher corpus.Publisher
	clock     corpus.Clock
	layout    site.Layout
	roster    *roster.Parser
	walker    *pagination.Walker
	parser    *poempage.Parser
	cfg       Config
	logger    *zap.Logger

	poemsWritten bool
}

// New constructs a Builder. publisher may be nil.
func New(
	fetcher corpus.Fetcher,
	sink corpus.Sink,
	publisher corpus.Publisher,
	clock corpus.Clock,
	layout site.Layout,
	cfg Config,
	logger *zap.Logger,
) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	logger = logger.With(zap.String("run_id", cfg.RunID))
	return &Builder{
		fetcher:   fetcher,
		sink:      sink,
		publisher: publisher,
		clock:     clock,
		layout:    layout,
		roster:    roster.NewParser(layout, logger.Named("roster")),
		walker:    pagination.NewWalker(fetcher, layout, logger.Named("pagination")),
		parser:    poempage.NewParser(layout, logger.Named("poempage")),
		cfg:       cfg,
		logger:    logger,
	}
}

// BuildAll runs the poet build then the poem build. With rebuild set, the
// store is wiped first when the sink supports it.
func (b *Builder) BuildAll(ctx context.Context, rebuild bool) (Summary, error) {
	start := b.clock.Now()
	if rebuild {
		if d, ok := b.sink.(Dropper); ok {
			if err := d.DropAll(ctx); err != nil {
				return Summary{RunID: b.cfg.RunID}, fmt.Errorf("rebuild: %w", err)
			}
			b.logger.Info("store dropped for full rebuild")
		} else {
			b.logger.Warn("sink cannot be dropped, tables will be replaced instead")
		}
	}

	poets, err := b.BuildPoets(ctx)
	if err != nil {
		return Summary{RunID: b.cfg.RunID}, err
	}
	sum, err := b.BuildPoems(ctx)
	sum.PoetsInRoster = len(poets)
	sum.Elapsed = b.clock.Now().Sub(start)
	b.logger.Info("run finished",
		zap.Int("poets", sum.Poets),
		zap.Int("poets_skipped", sum.PoetsSkipped),
		zap.Int("poems", sum.Poems),
		zap.Int("poems_skipped", sum.PoemsSkipped),
		zap.Int("mismatches", sum.Mismatches),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, err
}

// BuildPoets fetches the author index and replaces the poets table.
func (b *Builder) BuildPoets(ctx context.Context) ([]corpus.Poet, error) {
	start := b.clock.Now()
	indexURL := b.layout.IndexURL()

	markup, err := b.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch author index: %w", err)
	}
	poets, err := b.roster.Parse(markup)
	if err != nil {
		return nil, err
	}
	if len(poets) == 0 {
		b.logger.Warn("author index yielded no poets", zap.String("url", indexURL))
	}
	if err := b.sink.ReplacePoets(ctx, poets); err != nil {
		return nil, err
	}
	metrics.ObserveFlush(corpus.PoetsTable, "replace")

	b.logger.Info("poets stored",
		zap.String("step", "fetch_poets"),
		zap.Int("poets", len(poets)),
		zap.Duration("elapsed", b.clock.Now().Sub(start)),
	)
	return poets, nil
}

// BuildPoems reads the stored roster and rebuilds the poems table. Only a
// store failure or cancellation stops the run; fetch and parse failures skip
// the affected poet or poem.
func (b *Builder) BuildPoems(ctx context.Context) (Summary, error) {
	start := b.clock.Now()
	sum := Summary{RunID: b.cfg.RunID}

	poets, err := b.sink.ReadPoets(ctx)
	if err != nil {
		return sum, fmt.Errorf("read roster: %w", err)
	}
	poets = b.filter(poets)

	b.poemsWritten = false
	batch := NewBatch(b.cfg.BatchSize, b.writePoems)

	var runErr error
	for _, poet := range poets {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := b.buildPoet(ctx, poet, batch, &sum); err != nil {
			runErr = err
			break
		}
	}

	if err := b.finish(ctx, batch); err != nil && runErr == nil {
		runErr = err
	}

	sum.Elapsed = b.clock.Now().Sub(start)
	b.logger.Info("poems stored",
		zap.String("step", "fetch_poems"),
		zap.Int("poets", sum.Poets),
		zap.Int("poems", sum.Poems),
		zap.Int("poems_skipped", sum.PoemsSkipped),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, runErr
}

func (b *Builder) buildPoet(ctx context.Context, poet corpus.Poet, batch *Batch, sum *Summary) error {
	ctx, span := otel.Tracer("builder").Start(ctx, "poet")
	span.SetAttributes(attribute.String("poet.slug", poet.Slug))
	defer span.End()

	start := b.clock.Now()
	logger := b.logger.With(zap.String("poet_slug", poet.Slug))
	firstURL := b.layout.PoetURL(poet.Slug)

	first, err := b.fetcher.Fetch(ctx, firstURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("poet listing fetch failed, skipping poet", zap.String("url", firstURL), zap.Error(err))
		metrics.ObservePoet("skipped")
		sum.PoetsSkipped++
		return nil
	}

	res, err := b.walker.Walk(ctx, poet, firstURL, first)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("listing walk stopped early", zap.Int("pages", res.Pages), zap.Error(err))
	}
	if !res.Consistent() {
		w := corpus.ConsistencyWarning{PoetSlug: poet.Slug, Expected: res.ExpectedCount, Matched: res.MatchCount}
		logger.Error("poem count mismatch",
			zap.Int("expected", w.Expected),
			zap.Int("matched", w.Matched),
			zap.Stringer("warning", w),
		)
		metrics.ObserveCountMismatch()
		sum.Mismatches++
	}

	stored, skipped := 0, 0
	for _, poemURL := range res.PoemURLs {
		if err := ctx.Err(); err != nil {
			return err
		}
		markup, err := b.fetcher.Fetch(ctx, poemURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("poem fetch failed, skipping poem", zap.String("url", poemURL), zap.Error(err))
			metrics.ObservePoem("fetch_error")
			skipped++
			continue
		}
		poem, err := b.parser.Parse(poemURL, poet.Slug, markup)
		if err != nil {
			logger.Warn("poem parse failed, skipping poem", zap.String("url", poemURL), zap.Error(err))
			metrics.ObservePoem("parse_error")
			skipped++
			continue
		}
		logger.Debug("poem parsed",
			zap.String("poem_title", poem.Title),
			zap.String("poem_book", poem.Collection),
		)
		if err := batch.Add(ctx, poem); err != nil {
			return err
		}
		metrics.ObservePoem("stored")
		stored++
	}
	if err := batch.Flush(ctx); err != nil {
		return err
	}

	sum.Poets++
	sum.Poems += stored
	sum.PoemsSkipped += skipped
	metrics.ObservePoet("done")

	elapsed := b.clock.Now().Sub(start)
	logger.Info("poet done",
		zap.Int("pages", res.Pages),
		zap.Int("poems", stored),
		zap.Int("skipped", skipped),
		zap.Duration("elapsed", elapsed),
	)
	ev := PoetEvent{
		RunID:        b.cfg.RunID,
		PoetSlug:     poet.Slug,
		PoetName:     poet.Name,
		Pages:        res.Pages,
		Stored:       stored,
		Skipped:      skipped,
		Expected:     res.ExpectedCount,
		Matched:      res.MatchCount,
		FinishedAt:   b.clock.Now(),
		ElapsedMilli: elapsed.Milliseconds(),
	}
	span.SetAttributes(attribute.Int("poet.poems", stored), attribute.Bool("poet.consistent", res.Consistent()))
	if b.cfg.OnPoetDone != nil {
		b.cfg.OnPoetDone(ev)
	}
	b.publish(ctx, ev, logger)
	return nil
}

// writePoems replaces the poems table on the first write of a run and
// appends afterwards.
func (b *Builder) writePoems(ctx context.Context, poems []corpus.Poem) error {
	if !b.poemsWritten {
		if err := b.sink.ReplacePoems(ctx, poems); err != nil {
			return err
		}
		b.poemsWritten = true
		metrics.ObserveFlush(corpus.PoemsTable, "replace")
		return nil
	}
	if err := b.sink.AppendPoems(ctx, poems); err != nil {
		return err
	}
	metrics.ObserveFlush(corpus.PoemsTable, "append")
	return nil
}

// finish flushes the remainder. A canceled run still gets a short grace
// period so parsed poems are not lost. A run that wrote nothing leaves an
// empty poems table rather than a previous run's rows.
func (b *Builder) finish(ctx context.Context, batch *Batch) error {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), flushGrace)
		defer cancel()
	}
	if err := batch.Flush(ctx); err != nil {
		return err
	}
	if !b.poemsWritten {
		return b.writePoems(ctx, nil)
	}
	return nil
}

func (b *Builder) publish(ctx context.Context, ev PoetEvent, logger *zap.Logger) {
	if b.publisher == nil || b.cfg.Topic == "" {
		return
	}
	id, err := b.publisher.Publish(ctx, b.cfg.Topic, ev)
	if err != nil {
		logger.Warn("publish poet event failed", zap.String("topic", b.cfg.Topic), zap.Error(err))
		return
	}
	logger.Debug("poet event published", zap.String("message_id", id))
}

func (b *Builder) filter(poets []corpus.Poet) []corpus.Poet {
	if len(b.cfg.Poets) == 0 {
		return poets
	}
	want := make(map[string]struct{}, len(b.cfg.Poets))
	for _, slug := range b.cfg.Poets {
		want[slug] = struct{}{}
	}
	out := poets[:0:0]
	for _, p := range poets {
		if _, ok := want[p.Slug]; ok {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		b.logger.Warn("poet filter matched nothing", zap.Strings("poets", b.cfg.Poets))
	}
	return out
}
