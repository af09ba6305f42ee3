package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	unknownGenerator  = "Unknown"
	failureService    = "osint-critical-failure"
	defaultMatchTitle = "External Match"
	postedTimeUnknown = "Online Discovery"
)

// Match is a filtered web hit in the public report.
type Match struct {
	SourceName string `json:"source_name"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	PostedTime string `json:"posted_time"`
}

// FallbackLink points at a manual reverse-image search for the same media.
type FallbackLink struct {
	Engine string `json:"engine"`
	URL    string `json:"url"`
}

type Footprint struct {
	TotalMatches    int            `json:"totalMatches"`
	IsViral         bool           `json:"isViral"`
	AIGeneratorName string         `json:"ai_generator_name"`
	Matches         []Match        `json:"matches"`
	Method          string         `json:"method"`
	FallbackLinks   []FallbackLink `json:"fallback_links,omitempty"`
}

type TimelineIntel struct {
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
}

// Report is the response body of an analysis.
type Report struct {
	ID           uuid.UUID      `json:"id"`
	Service      string         `json:"service"`
	MediaURL     string         `json:"mediaUrl"`
	Footprint    Footprint      `json:"footprintAnalysis"`
	Timeline     *TimelineIntel `json:"timelineIntel,omitempty"`
	MediaProfile *MediaProfile  `json:"mediaProfile,omitempty"`
	ArchiveURL   string         `json:"archiveUrl,omitempty"`
	Cached       bool           `json:"cached,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Failed reports whether the report is a critical-failure envelope.
func (r *Report) Failed() bool { return r.Service == failureService }

// Analyzer runs filename forensics, reverse-image search and the media probe
// for a media URL and folds the results into a Report.
type Analyzer struct {
	config     *Config
	heuristics *Heuristics
	search     SearchProvider
	prober     *MediaProber
	cache      ReportCache
	recorder   Recorder
	group      singleflight.Group
}

// Recorder persists a fresh report. It runs once per analysis run, before
// the report is cached, and may set ArchiveURL.
type Recorder interface {
	Record(ctx context.Context, report *Report)
}

// NewAnalyzer wires the analyzer. search and prober may be nil; the matching
// phases are then skipped.
func NewAnalyzer(config *Config, search SearchProvider, prober *MediaProber, cache ReportCache) *Analyzer {
	if cache == nil {
		cache = noopCache{}
	}
	return &Analyzer{
		config:     config,
		heuristics: NewHeuristics(config),
		search:     search,
		prober:     prober,
		cache:      cache,
	}
}

// SetRecorder makes every successful run pass through recorder.
func (a *Analyzer) SetRecorder(recorder Recorder) {
	a.recorder = recorder
}

// Analyze returns a report for mediaURL. Concurrent calls for the same URL
// share one run. A non-nil error comes with a failure report describing how
// far the analysis got.
func (a *Analyzer) Analyze(ctx context.Context, mediaURL string) (*Report, error) {
	if cached, ok := a.cache.Get(ctx, mediaURL); ok {
		r := *cached
		r.Cached = true
		return &r, nil
	}

	v, err, _ := a.group.Do(mediaURL, func() (interface{}, error) {
		report, err := a.run(ctx, mediaURL)
		if err == nil {
			if a.recorder != nil {
				a.recorder.Record(ctx, report)
			}
			if cerr := a.cache.Set(ctx, mediaURL, report); cerr != nil {
				log.Printf("Analyze: cache store failed: %v", cerr)
			}
		}
		return report, err
	})
	// Callers get their own copy; the shared run result is never mutated.
	r := *v.(*Report)
	return &r, err
}

func (a *Analyzer) run(ctx context.Context, mediaURL string) (*Report, error) {
	report := &Report{
		ID:        uuid.New(),
		Service:   a.config.Analysis.ServiceName,
		MediaURL:  mediaURL,
		CreatedAt: time.Now().UTC(),
		Footprint: Footprint{
			AIGeneratorName: unknownGenerator,
			Matches:         []Match{},
			Method:          "None",
		},
	}
	fp := &report.Footprint

	// Phase 1: filename forensics.
	filename := MediaFilename(mediaURL)
	if name, ok := a.heuristics.MatchFilename(filename); ok {
		fp.AIGeneratorName = name
	}

	// Phase 2: visual search and media probe run side by side.
	var raw []RawMatch
	g, gctx := errgroup.WithContext(ctx)
	if a.search != nil {
		g.Go(func() error {
			matches, err := a.search.VisualMatches(gctx, mediaURL)
			if err != nil {
				log.Printf("Analyze: visual search via %s failed, trying fallback: %v", a.search.Name(), err)
				return nil
			}
			if matches != nil {
				raw = matches
				fp.Method = "Visual Fingerprint"
			}
			return nil
		})
	}
	if a.prober != nil && a.config.Probe.Enabled {
		g.Go(func() error {
			profile, err := a.prober.Probe(gctx, mediaURL)
			if err != nil {
				log.Printf("Analyze: media probe failed for %s: %v", mediaURL, err)
				return nil
			}
			report.MediaProfile = profile
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return a.fail(report, err), err
	}

	// Phase 3: text fallback on the filename.
	if a.search != nil && len(raw) == 0 {
		query := FilenameQuery(filename)
		if len(query) >= a.config.Analysis.MinQueryLength {
			images, err := a.search.ImageSearch(ctx, query)
			switch {
			case err != nil:
				log.Printf("Analyze: text search failed: %v", err)
			case images != nil:
				raw = images
				fp.Method = "Filename Lookup"
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return a.fail(report, err), err
	}

	// Phase 4: filter and summarise.
	clean := make([]RawMatch, 0, len(raw))
	for _, m := range raw {
		if !a.heuristics.IsIgnored(m) {
			clean = append(clean, m)
		}
	}
	fp.TotalMatches = len(clean)
	fp.IsViral = len(clean) > a.config.Analysis.ViralThreshold
	for i, m := range clean {
		if i >= a.config.Analysis.MaxMatches {
			break
		}
		fp.Matches = append(fp.Matches, toMatch(m))
	}

	// Phase 5: fill in the generator from weaker signals.
	if fp.AIGeneratorName == unknownGenerator {
		fp.AIGeneratorName = a.inferGenerator(clean, report.MediaProfile)
	}

	if len(fp.Matches) == 0 && a.config.Analysis.FallbackLinks {
		fp.FallbackLinks = ManualSearchLinks(mediaURL)
	}

	report.Timeline = &TimelineIntel{FirstSeen: "Unique/Private", LastSeen: "Just Now"}
	if len(fp.Matches) > 0 {
		report.Timeline.FirstSeen = "Found Publicly"
	}
	return report, nil
}

func (a *Analyzer) inferGenerator(clean []RawMatch, profile *MediaProfile) string {
	if len(clean) > 0 {
		var sb strings.Builder
		for _, m := range clean {
			sb.WriteString(m.Title)
			sb.WriteByte(' ')
			sb.WriteString(m.Source)
			sb.WriteByte(' ')
		}
		if name, ok := a.heuristics.MatchContext(sb.String()); ok {
			return name
		}
	}
	if profile == nil {
		return unknownGenerator
	}
	if profile.Provenance != nil {
		return fmt.Sprintf("%s (Metadata)", profile.Provenance.Provider)
	}
	if name, ok := a.heuristics.MatchResolution(profile.Width, profile.Height); ok {
		return name
	}
	return unknownGenerator
}

func (a *Analyzer) fail(report *Report, err error) *Report {
	report.Service = failureService
	report.Timeline = nil
	report.Error = err.Error()
	return report
}

// FailureReport builds the critical-failure envelope for errors raised
// outside the analyzer.
func FailureReport(mediaURL string, err error) *Report {
	return &Report{
		ID:       uuid.New(),
		Service:  failureService,
		MediaURL: mediaURL,
		Footprint: Footprint{
			AIGeneratorName: unknownGenerator,
			Matches:         []Match{},
			Method:          "None",
		},
		Error:     err.Error(),
		CreatedAt: time.Now().UTC(),
	}
}

func toMatch(m RawMatch) Match {
	out := Match{
		SourceName: m.Source,
		Title:      m.Title,
		URL:        m.Link,
		PostedTime: postedTimeUnknown,
	}
	if out.SourceName == "" {
		out.SourceName = hostName(m.Link)
	}
	if out.Title == "" {
		out.Title = defaultMatchTitle
	}
	return out
}

func hostName(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return "Unknown Source"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// ManualSearchLinks returns reverse-image search pages a person can open when
// the automated search found nothing.
func ManualSearchLinks(mediaURL string) []FallbackLink {
	q := url.QueryEscape(mediaURL)
	return []FallbackLink{
		{Engine: "Google Lens", URL: "https://lens.google.com/uploadbyurl?url=" + q},
		{Engine: "Bing Visual Search", URL: "https://www.bing.com/images/search?view=detailv2&iss=sbi&q=imgurl:" + q},
		{Engine: "Yandex Images", URL: "https://yandex.com/images/search?rpt=imageview&url=" + q},
		{Engine: "TinEye", URL: "https://tineye.com/search?url=" + q},
	}
}
