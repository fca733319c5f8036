package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/legal-decisions-crawler/internal/decision"
	memorypublisher "github.com/JakeFAU/legal-decisions-crawler/internal/publisher/memory"
	"github.com/JakeFAU/legal-decisions-crawler/internal/records"
	"github.com/JakeFAU/legal-decisions-crawler/internal/storage/memory"
)

const detailTemplate = `<!DOCTYPE html><html><body>
<h1 class="titelzeile">%s</h1>
<div id="doc-metadata"><div><div><b>%s</b></div></div></div>
<h2>Gründe</h2>
<div><div class="absatz gruende">%s</div></div>
</body></html>`

type decisionFixture struct {
	heading, metaLine, reasons string
}

var fixtures = map[string]decisionFixture{
	"A": {"Baugenehmigung", "VG München, Urteil v. 01.02.2020 – M 1 K 19/1", "Die Klage ist begründet."},
	"B": {"Eilverfahren", "VGH München, Beschluss v. 03.02.2020 – 9 CS 19.2", "Die Beschwerde bleibt erfolglos."},
	"C": {"Schadensersatz", "LG Passau, Endurteil v. 04.02.2020 – 1 O 3/20", "Der Anspruch besteht."},
	"D": {"Presse", "Pressemitteilung 12/2020", "Kein Urteilstext."},
}

func entry(id, label string) string {
	return fmt.Sprintf(`<li class="hitlistItem"><div class="hltitel"><a href="/Content/Document/%s">%s</a></div></li>`, id, label)
}

// siteServer serves a two-page listing whose start URL first redirects to
// itself while setting a session cookie, and whose last page links to itself.
type siteServer struct {
	*httptest.Server

	mu     sync.Mutex
	hits   map[string]int
	agents map[string]bool
}

func newSiteServer(t *testing.T) *siteServer {
	t.Helper()
	s := &siteServer{hits: map[string]int{}, agents: map[string]bool{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/Search/Filter/DOKTYP/rspr", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "1", Path: "/"})
			http.Redirect(w, r, r.URL.Path, http.StatusFound)
			return
		}
		s.record(r)
		writeHTML(w, `<ul class="hitlist">`+
			entry("A", "VG München, Urteil v. 01.02.2020")+
			entry("B", "VGH München, Beschluss v. 03.02.2020")+
			`</ul><ul class="pagination"><li class="active"><span>1</span></li><li><a href="/Search/Page/2">&raquo;</a></li></ul>`)
	})
	mux.HandleFunc("/Search/Page/2", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		writeHTML(w, `<ul class="hitlist">`+
			entry("A", "VG München, Urteil v. 01.02.2020")+
			entry("C", "LG Passau, Urteil vom 04.02.2020")+
			entry("D", "Urteil (Pressemitteilung)")+
			`</ul><ul class="pagination"><li><a href="/Search/Filter/DOKTYP/rspr">1</a></li><li class="active"><a href="/Search/Page/2">2</a></li></ul>`)
	})
	mux.HandleFunc("/Content/Document/", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		id := strings.TrimPrefix(r.URL.Path, "/Content/Document/")
		f, ok := fixtures[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeDetail(w, f)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<!DOCTYPE html><html><body>" + body + "</body></html>"))
}

func writeDetail(w http.ResponseWriter, f decisionFixture) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, detailTemplate, f.heading, f.metaLine, f.reasons)
}

func (s *siteServer) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[r.URL.Path]++
	s.agents[r.UserAgent()] = true
}

func (s *siteServer) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *siteServer) config() Config {
	return Config{
		StartURL:       s.URL + "/Search/Filter/DOKTYP/rspr",
		BaseURL:        s.URL,
		UserAgent:      "decisions-test-agent",
		Parallelism:    2,
		RequestTimeout: 5 * time.Second,
		IgnoreRobots:   true,
	}
}

type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) Upsert(ctx context.Context, rec SavedRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newRecordStore(t *testing.T) (*records.Store, *memory.BlobStore) {
	t.Helper()
	blobs := memory.NewBlobStore()
	store, err := records.New(blobs)
	require.NoError(t, err)
	return store, blobs
}

func TestEngineRunFullJob(t *testing.T) {
	site := newSiteServer(t)
	store, blobs := newRecordStore(t)
	indexer := new(mockIndexer)
	indexer.On("Upsert", mock.Anything, mock.AnythingOfType("crawler.SavedRecord")).Return(nil)
	notifier := memorypublisher.New()
	core, logs := observer.New(zapcore.DebugLevel)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	job, err := Lookup(JobFull)
	require.NoError(t, err)
	engine, err := NewEngine(site.config(), job, store,
		WithIndexer(indexer),
		WithNotifier(notifier),
		WithLogger(zap.New(core)),
		WithClock(fixedClock{now}),
		WithRunID("run-42"),
	)
	require.NoError(t, err)

	stats, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{
		ListingPages:     2,
		DetailsScheduled: 4,
		DetailPages:      4,
		Saved:            3,
		Skipped:          1,
	}, stats)

	// Each decision URL is fetched once even though A is listed twice, and the
	// self-referencing pagination link on page 2 ends the crawl.
	for _, id := range []string{"A", "B", "C", "D"} {
		assert.Equalf(t, 1, site.hitCount("/Content/Document/"+id), "decision %s", id)
	}
	assert.Equal(t, 1, site.hitCount("/Search/Filter/DOKTYP/rspr"))
	assert.Equal(t, 1, site.hitCount("/Search/Page/2"))
	assert.True(t, site.agents["decisions-test-agent"])

	assert.Equal(t, []string{
		"LG Passau, Endurteil v. 04.02.2020 – 1 O 3$20.json",
		"VG München, Urteil v. 01.02.2020 – M 1 K 19$1.json",
		"VGH München, Beschluss v. 03.02.2020 – 9 CS 19.2.json",
	}, blobs.Paths())

	data, ok := blobs.Get("VG München, Urteil v. 01.02.2020 – M 1 K 19$1.json")
	require.True(t, ok)
	rec, err := records.DecodeFull(data)
	require.NoError(t, err)
	assert.Equal(t, "VG München", rec.Meta.Court)
	assert.Equal(t, "Urteil", rec.Meta.DecisionStyle)
	assert.Equal(t, "M 1 K 19/1", rec.Meta.FileNumber)
	assert.Equal(t, "Baugenehmigung", rec.Meta.Title)
	assert.Equal(t, []string{"Die Klage ist begründet."}, rec.DecisionText.DecisionReasons)

	indexer.AssertNumberOfCalls(t, "Upsert", 3)
	indexer.AssertCalled(t, "Upsert", mock.Anything, SavedRecord{
		RunID:   "run-42",
		Job:     JobFull,
		URL:     site.URL + "/Content/Document/A",
		URI:     "memory://VG München, Urteil v. 01.02.2020 – M 1 K 19$1.json",
		SavedAt: now,
		Summary: decision.Summary{
			Key:           "VG München, Urteil v. 01.02.2020 – M 1 K 19$1",
			Title:         "Baugenehmigung",
			Court:         "VG München",
			DecisionStyle: "Urteil",
			Date:          "01.02.2020",
			FileNumber:    "M 1 K 19/1",
		},
	})

	msgs := notifier.Messages()
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, map[string]string{"job": JobFull, "run_id": "run-42"}, m.Attributes)
		assert.IsType(t, SavedRecord{}, m.Payload)
	}

	skipped := logs.FilterMessage("decision page skipped").All()
	require.Len(t, skipped, 1)
	fields := skipped[0].ContextMap()
	assert.Equal(t, site.URL+"/Content/Document/D", fields["url"])
	assert.NotEmpty(t, fields["field"])
	assert.Equal(t, 1, logs.FilterMessage("pagination links to the current page").Len())
}

func TestEngineRunSmallJobFollowsJudgmentsOnly(t *testing.T) {
	site := newSiteServer(t)
	store, blobs := newRecordStore(t)

	job, err := Lookup(JobSmall)
	require.NoError(t, err)
	engine, err := NewEngine(site.config(), job, store)
	require.NoError(t, err)

	stats, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.ListingPages)
	assert.Equal(t, int64(3), stats.DetailPages)
	// The small record keeps the metadata line unparsed, so D is saved too.
	assert.Equal(t, int64(3), stats.Saved)
	assert.Zero(t, stats.Skipped)
	assert.Zero(t, site.hitCount("/Content/Document/B"))

	paths := blobs.Paths()
	sort.Strings(paths)
	assert.Equal(t, []string{
		"LG Passau, Endurteil v. 04.02.2020 – 1 O 3$20.json",
		"Pressemitteilung 12$2020.json",
		"VG München, Urteil v. 01.02.2020 – M 1 K 19$1.json",
	}, paths)

	data, ok := blobs.Get(paths[0])
	require.True(t, ok)
	rec, err := records.DecodeSmall(data)
	require.NoError(t, err)
	assert.Equal(t, decision.SmallRecord{
		Title: "LG Passau, Endurteil v. 04.02.2020 – 1 O 3$20",
		Name:  "Schadensersatz",
		Text:  "Der Anspruch besteht.",
	}, *rec)
}

func TestEngineRunHonorsListingPageLimit(t *testing.T) {
	site := newSiteServer(t)
	store, blobs := newRecordStore(t)

	cfg := site.config()
	cfg.MaxListingPages = 1
	job, _ := Lookup(JobFull)
	engine, err := NewEngine(cfg, job, store)
	require.NoError(t, err)

	stats, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ListingPages)
	assert.Zero(t, site.hitCount("/Search/Page/2"))
	assert.Len(t, blobs.Paths(), 2)
}

func TestEngineRunCountsFetchErrorsAndContinues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, _ *http.Request) {
		writeHTML(w, `<div class="hltitel"><a href="/missing">x</a></div>`+
			`<div class="hltitel"><a href="/ok">y</a></div>`)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, fixtures["B"])
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store, blobs := newRecordStore(t)
	job, _ := Lookup(JobFull)
	engine, err := NewEngine(Config{StartURL: srv.URL + "/start", BaseURL: srv.URL, Parallelism: 1, RequestTimeout: 5 * time.Second, IgnoreRobots: true}, job, store)
	require.NoError(t, err)

	stats, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FetchErrors)
	assert.Equal(t, int64(1), stats.Saved)
	assert.Len(t, blobs.Paths(), 1)
}

type failingSaver struct{}

func (failingSaver) Save(context.Context, decision.Record) (string, error) {
	return "", fmt.Errorf("disk full")
}

func TestEngineRunPersistFailureSkipsPage(t *testing.T) {
	site := newSiteServer(t)
	job, _ := Lookup(JobSmall)
	engine, err := NewEngine(site.config(), job, failingSaver{})
	require.NoError(t, err)

	stats, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Saved)
	assert.Equal(t, int64(3), stats.Skipped)
}

func TestEngineRunCanceledContext(t *testing.T) {
	site := newSiteServer(t)
	store, blobs := newRecordStore(t)
	job, _ := Lookup(JobFull)
	engine, err := NewEngine(site.config(), job, store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Run(ctx)
	require.Error(t, err)
	assert.Empty(t, blobs.Paths())
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	store, _ := newRecordStore(t)
	job, _ := Lookup(JobFull)

	_, err := NewEngine(Config{}, job, nil)
	assert.Error(t, err)

	_, err = NewEngine(Config{}, Job{Name: "empty"}, store)
	assert.Error(t, err)

	_, err = NewEngine(Config{StartURL: "/relative"}, job, store)
	assert.Error(t, err)

	_, err = NewEngine(Config{BaseURL: "ftp://www.gesetze-bayern.de"}, job, store)
	assert.Error(t, err)

	engine, err := NewEngine(Config{}, job, store)
	require.NoError(t, err)
	assert.Equal(t, DefaultStartURL, engine.cfg.StartURL)
	assert.Equal(t, 1, engine.cfg.Parallelism)
}
