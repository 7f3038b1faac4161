package app_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/app"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/config"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	memorystorage "github.com/djfrancesco/poesie-francaise-scraper/internal/storage/memory"
	memorystore "github.com/djfrancesco/poesie-francaise-scraper/internal/store/memory"
)

// newSite serves a two-poem corpus for one poet below srv.URL.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/poemes-auteurs/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<ul class="reglage-menu"><li><a href="%spoemes-victor-hugo/">Victor Hugo (1802-1885)</a></li></ul>`, base)
	})
	mux.HandleFunc("/poemes-victor-hugo/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<h2>Les 2 poèmes de Victor Hugo :</h2>
<a href="%[1]svictor-hugo/poeme-demain.php">Demain</a>
<a href="%[1]svictor-hugo/poeme-elle.php">Elle</a>`, base)
	})
	poem := func(title string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			back := fmt.Sprintf(`<a href="%spoemes-victor-hugo/">Victor Hugo</a>`, base)
			fmt.Fprintf(w, `<html><body>
<h2>Titre : %s</h2>
<h3>Poète : %s (1802-1885)</h3>
<div class="w3-margin-bottom">Recueil : <a href="%svictor-hugo/recueil.php">Les Contemplations</a>.</div>
<p>Premier vers,<br />
second vers.</p>
%s
</body></html>`, title, back, base, back)
		}
	}
	mux.HandleFunc("/victor-hugo/poeme-demain.php", poem("Demain"))
	mux.HandleFunc("/victor-hugo/poeme-elle.php", poem("Elle"))

	srv := httptest.NewServer(mux)
	base = srv.URL + "/"
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srvURL string) config.Config {
	return config.Config{
		Site:    config.SiteConfig{BaseURL: srvURL + "/", IndexPath: "poemes-auteurs/"},
		HTTP:    config.HTTPConfig{UserAgent: "poesie-test", TimeoutSeconds: 2},
		Builder: config.BuilderConfig{BatchSize: 10, Rebuild: true},
		Store:   config.StoreConfig{Driver: config.StoreMemory},
		Archive: config.ArchiveConfig{Driver: config.ArchiveMemory},
	}
}

func TestRunBuildAllWithMemoryDrivers(t *testing.T) {
	srv := newSite(t)
	ctx := context.Background()

	a, err := app.Build(ctx, testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close(context.Background())) })

	sum, err := a.Run(ctx, app.StepAll, true)
	require.NoError(t, err)
	assert.Equal(t, a.RunID(), sum.RunID)
	assert.Equal(t, 1, sum.Poets)
	assert.Equal(t, 2, sum.Poems)
	assert.Zero(t, sum.Mismatches)

	store, ok := a.Sink().(*memorystore.Store)
	require.True(t, ok)
	poems := store.Poems()
	require.Len(t, poems, 2)
	assert.Equal(t, corpus.Poem{
		PoetSlug:   "victor-hugo",
		Title:      "Demain",
		TitleSlug:  "demain",
		AuthorName: "Victor Hugo",
		Collection: "Les Contemplations",
		Body:       "Premier vers,\n\nsecond vers.",
	}, poems[0])

	blobs, ok := a.Archive().(*memorystorage.BlobStore)
	require.True(t, ok)
	keys := blobs.Keys()
	assert.Len(t, keys, 4)
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, a.RunID()+"/"), k)
	}

	status := a.Tracker().Snapshot()
	assert.Equal(t, string(app.StepAll), status.Step)
	assert.Equal(t, 1, status.PoetsDone)
	assert.Equal(t, 2, status.PoemsDone)
	assert.Empty(t, status.Error)
}

func TestRunStepsSeparatelyWithSQLite(t *testing.T) {
	srv := newSite(t)
	ctx := context.Background()
	cfg := testConfig(srv.URL)
	cfg.Store = config.StoreConfig{Driver: config.StoreSQLite, Path: filepath.Join(t.TempDir(), "corpus.sqlite")}
	cfg.Archive = config.ArchiveConfig{Driver: config.ArchiveNone}
	cfg.Metrics.ListenAddr = "127.0.0.1:0"

	a, err := app.Build(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close(context.Background())) })
	assert.Nil(t, a.Archive())

	sum, err := a.Run(ctx, app.StepPoets, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.PoetsInRoster)

	poets, err := a.Sink().ReadPoets(ctx)
	require.NoError(t, err)
	require.Len(t, poets, 1)
	assert.Equal(t, "victor-hugo", poets[0].Slug)

	sum, err = a.Run(ctx, app.StepPoems, false)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Poems)
}

func TestRunPoemsWithoutRosterFails(t *testing.T) {
	srv := newSite(t)
	ctx := context.Background()

	a, err := app.Build(ctx, testConfig(srv.URL), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close(context.Background())) })

	_, err = a.Run(ctx, app.StepPoems, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, corpus.ErrNotFound)
	assert.NotEmpty(t, a.Tracker().Snapshot().Error)
}

func TestRunUnknownStep(t *testing.T) {
	srv := newSite(t)
	a, err := app.Build(context.Background(), testConfig(srv.URL), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close(context.Background())) })

	_, err = a.Run(context.Background(), app.Step("publish"), false)
	assert.ErrorContains(t, err, "unknown step")
}

func TestBuildFailsOnBadSQLitePath(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Store = config.StoreConfig{Driver: config.StoreSQLite, Path: filepath.Join(t.TempDir(), "missing", "dir", "corpus.sqlite")}

	_, err := app.Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "sqlite store init failed")
}
