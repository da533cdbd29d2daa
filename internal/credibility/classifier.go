// Package credibility estimates how trustworthy a source URL is from its domain.
package credibility

import (
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// SourceType constants
const (
	SourceFactChecker = "fact_checker"
	SourceNewsOutlet  = "news_outlet"
	SourceAcademic    = "academic"
	SourceGovernment  = "government"
	SourceWiki        = "wiki"
	SourceSocialMedia = "social_media"
	SourceUnknown     = "unknown"
	SourceInvalid     = "invalid"
)

// Credibility tiers
const (
	scoreVeryHigh = 0.9
	scoreHigh     = 0.8
	scoreMedium   = 0.6
	scoreLow      = 0.4
	scoreUnknown  = 0.5
	scoreInvalid  = 0.1
	httpsBonus    = 0.05
)

var factCheckers = map[string]bool{
	"snopes.com": true, "factcheck.org": true, "politifact.com": true, "fullfact.org": true,
	"checkyourfact.com": true, "factchecker.in": true, "africacheck.org": true,
	"factly.in": true, "boomlive.in": true, "altnews.in": true,
}

var newsOutlets = map[string]bool{
	"reuters.com": true, "ap.org": true, "apnews.com": true, "bbc.com": true, "bbc.co.uk": true,
	"npr.org": true, "pbs.org": true, "wsj.com": true, "nytimes.com": true,
	"washingtonpost.com": true, "theguardian.com": true, "economist.com": true,
	"ft.com": true, "bloomberg.com": true,
}

var academic = map[string]bool{
	"scholar.google.com": true, "researchgate.net": true, "arxiv.org": true,
	"pubmed.ncbi.nlm.nih.gov": true, "jstor.org": true, "nature.com": true, "science.org": true,
}

var government = map[string]bool{
	"europa.eu": true, "un.org": true, "who.int": true,
}

var wikis = map[string]bool{
	"wikipedia.org": true, "wikimedia.org": true, "wikidata.org": true,
}

var socialMedia = map[string]bool{
	"twitter.com": true, "x.com": true, "facebook.com": true, "instagram.com": true,
	"linkedin.com": true, "reddit.com": true, "tiktok.com": true, "youtube.com": true,
}

// Suffixes matched against the end of the host.
var academicSuffixes = []string{"edu", "ac.uk", "ac.in", "ac.jp", "edu.au"}
var governmentSuffixes = []string{"gov", "mil", "gov.uk", "gov.in", "gov.au", "gc.ca"}

// Assessment is the credibility verdict for one source.
type Assessment struct {
	URL    string  `json:"url"`
	Domain string  `json:"domain"`
	Type   string  `json:"type"`
	Score  float64 `json:"score"`
	HTTPS  bool    `json:"https"`
	Cached bool    `json:"cached"`
}

// Classify assesses rawURL from its domain alone.
func Classify(rawURL string) Assessment {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Assessment{URL: rawURL, Type: SourceInvalid, Score: scoreInvalid}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	a := Assessment{URL: rawURL, Domain: host, HTTPS: u.Scheme == "https"}
	a.Type, a.Score = classifyHost(host)
	if a.HTTPS {
		a.Score += httpsBonus
	}
	if a.Score > 1 {
		a.Score = 1
	}
	return a
}

func classifyHost(host string) (string, float64) {
	switch {
	case matchesDomain(host, factCheckers):
		return SourceFactChecker, scoreVeryHigh
	case matchesDomain(host, newsOutlets):
		return SourceNewsOutlet, scoreHigh
	case matchesDomain(host, academic) || hasSuffix(host, academicSuffixes):
		return SourceAcademic, scoreVeryHigh
	case matchesDomain(host, government) || hasSuffix(host, governmentSuffixes):
		return SourceGovernment, scoreVeryHigh
	case matchesDomain(host, wikis):
		return SourceWiki, scoreMedium
	case matchesDomain(host, socialMedia):
		return SourceSocialMedia, scoreLow
	}
	return SourceUnknown, scoreUnknown
}

// matchesDomain reports whether host equals or is a subdomain of a listed domain.
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for d := range domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func hasSuffix(host string, suffixes []string) bool {
	for _, s := range suffixes {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// Scorer classifies sources and caches assessments per domain.
type Scorer struct {
	cache *gocache.Cache
}

// NewScorer creates a scorer whose cached assessments live for ttl.
func NewScorer(ttl time.Duration) *Scorer {
	return &Scorer{cache: gocache.New(ttl, 2*ttl)}
}

// Assess returns the cached assessment for the URL's scheme and domain, or classifies and caches it.
func (s *Scorer) Assess(rawURL string) Assessment {
	key := cacheKey(rawURL)
	if key != "" {
		if v, found := s.cache.Get(key); found {
			a := v.(Assessment)
			a.URL = rawURL
			a.Cached = true
			return a
		}
	}

	a := Classify(rawURL)
	if key != "" && a.Type != SourceInvalid {
		s.cache.SetDefault(key, a)
	}
	return a
}

// Seed stores a known credibility for a domain, overriding the heuristics.
func (s *Scorer) Seed(domain string, score float64) {
	domain = strings.TrimPrefix(strings.ToLower(domain), "www.")
	for _, scheme := range []string{"http", "https"} {
		s.cache.SetDefault(scheme+"://"+domain, Assessment{Domain: domain, Type: SourceUnknown, Score: score, HTTPS: scheme == "https"})
	}
}

func cacheKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
