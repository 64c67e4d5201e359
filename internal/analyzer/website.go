// Package analyzer derives website signals and AI sales intelligence for
// discovered prospects. Both analyzers follow a never-block-the-batch
// contract: failures produce tagged default values, not errors.
package analyzer

import (
	"context"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/prospecting-cli/internal/config"
	"github.com/sells-group/prospecting-cli/internal/model"
)

// maxBodyBytes caps how much of a target page is read.
const maxBodyBytes = 512 * 1024

// socialDomains are the networks recognized when collecting social links.
var socialDomains = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"linkedin.com",
	"youtube.com",
}

var (
	titleRe        = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	viewportRe     = regexp.MustCompile(`(?i)<meta[^>]+name=["']viewport["']`)
	h1Re           = regexp.MustCompile(`(?i)<h1[\s>]`)
	metaDescRe     = regexp.MustCompile(`(?i)<meta[^>]+name=["']description["'][^>]*content=["']([^"']*)["']`)
	metaDescRevRe  = regexp.MustCompile(`(?i)<meta[^>]+content=["']([^"']*)["'][^>]*name=["']description["']`)
	ogTitleRe      = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:title["']`)
	twitterTitleRe = regexp.MustCompile(`(?i)<meta[^>]+name=["']twitter:title["']`)
	anchorHrefRe   = regexp.MustCompile(`(?i)<a[^>]+href=["']([^"']+)["']`)
)

// modernDesignTokens mark framework or layout usage in raw HTML.
var modernDesignTokens = []string{"tailwind", "bootstrap", "flexbox", "grid"}

// WebsiteAnalyzer fetches a prospect's website and derives heuristic signals
// (design, responsiveness, SEO, social links). It never raises to its
// caller: any fetch or parse problem yields the documented degraded result.
type WebsiteAnalyzer struct {
	client          *http.Client
	userAgent       string
	maxContentChars int
}

// NewWebsiteAnalyzer creates a WebsiteAnalyzer from config.
func NewWebsiteAnalyzer(cfg config.AnalyzerConfig) *WebsiteAnalyzer {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxChars := cfg.MaxContentChars
	if maxChars <= 0 {
		maxChars = 5000
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; ProspectingBot/1.0)"
	}
	return &WebsiteAnalyzer{
		client:          &http.Client{Timeout: timeout},
		userAgent:       userAgent,
		maxContentChars: maxChars,
	}
}

// Analyze fetches targetURL with a single GET and derives website signals.
// One attempt, no retries. On any failure the degraded default is returned
// and the failure is logged.
func (a *WebsiteAnalyzer) Analyze(ctx context.Context, targetURL string) model.WebsiteAnalysis {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		zap.L().Warn("analyzer: invalid website url",
			zap.String("url", targetURL),
			zap.Error(err),
		)
		return model.DefaultWebsiteAnalysis("invalid url")
	}
	req.Header.Set("User-Agent", a.userAgent)

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		zap.L().Warn("analyzer: website fetch failed",
			zap.String("url", targetURL),
			zap.Error(err),
		)
		return model.DefaultWebsiteAnalysis("fetch failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	loadTime := time.Since(start).Milliseconds()
	if err != nil {
		zap.L().Warn("analyzer: website read failed",
			zap.String("url", targetURL),
			zap.Error(err),
		)
		return model.DefaultWebsiteAnalysis("read failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Warn("analyzer: website returned non-2xx",
			zap.String("url", targetURL),
			zap.Int("status", resp.StatusCode),
		)
		return model.DefaultWebsiteAnalysis("non-2xx status")
	}

	html := decodeBody(body, resp.Header.Get("Content-Type"))
	result := a.analyzeHTML(html)
	result.LoadTimeMS = loadTime

	zap.L().Debug("analyzer: website analyzed",
		zap.String("url", targetURL),
		zap.Int64("load_time_ms", loadTime),
		zap.Bool("has_seo", result.HasSEO),
		zap.Int("social_links", len(result.SocialLinks)),
	)

	return result
}

// analyzeHTML applies the signal heuristics to a fetched page.
func (a *WebsiteAnalyzer) analyzeHTML(html string) model.WebsiteAnalysis {
	lower := strings.ToLower(html)
	hasViewport := viewportRe.MatchString(html)

	result := model.WebsiteAnalysis{
		Title:       extractTitle(html),
		Description: extractMetaDescription(html),
		Content:     truncate(visibleText(html), a.maxContentChars),
	}

	for _, token := range modernDesignTokens {
		if strings.Contains(lower, token) {
			result.HasModernDesign = true
			break
		}
	}
	result.HasModernDesign = result.HasModernDesign || hasViewport

	result.IsMobileResponsive = hasViewport ||
		strings.Contains(lower, "@media") ||
		strings.Contains(lower, "responsive")

	// SEO requires all of: meta description, <title>, at least one <h1>,
	// and an Open Graph or Twitter title tag.
	result.HasSEO = metaDescriptionPresent(html) &&
		titleRe.MatchString(html) &&
		h1Re.MatchString(html) &&
		(ogTitleRe.MatchString(html) || twitterTitleRe.MatchString(html))

	result.SocialLinks = collectSocialLinks(html)

	return result
}

// decodeBody converts the response body to UTF-8 using the charset from the
// Content-Type header. Unknown or missing charsets fall back to the raw bytes.
func decodeBody(body []byte, contentType string) string {
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if charset := params["charset"]; charset != "" && !strings.EqualFold(charset, "utf-8") {
				if enc, err := htmlindex.Get(charset); err == nil {
					if decoded, err := enc.NewDecoder().Bytes(body); err == nil {
						return string(decoded)
					}
				}
			}
		}
	}
	return string(body)
}

// extractTitle pulls the <title> from HTML.
func extractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func metaDescriptionPresent(html string) bool {
	return metaDescRe.MatchString(html) || metaDescRevRe.MatchString(html)
}

func extractMetaDescription(html string) string {
	if m := metaDescRe.FindStringSubmatch(html); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if m := metaDescRevRe.FindStringSubmatch(html); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// collectSocialLinks gathers anchor hrefs pointing at known social networks,
// de-duplicated, in first-seen order.
func collectSocialLinks(html string) []string {
	seen := make(map[string]bool)
	var links []string
	for _, m := range anchorHrefRe.FindAllStringSubmatch(html, -1) {
		href := m[1]
		lower := strings.ToLower(href)
		for _, domain := range socialDomains {
			if strings.Contains(lower, domain) {
				if !seen[href] {
					seen[href] = true
					links = append(links, href)
				}
				break
			}
		}
	}
	return links
}

// visibleText strips scripts/styles/nav/footer, removes tags, decodes common
// entities, and collapses whitespace. The result is plaintext used only as
// LLM context.
func visibleText(html string) string {
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	tagRe := regexp.MustCompile(`<[^>]+>`)
	html = tagRe.ReplaceAllString(html, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	spaceRe := regexp.MustCompile(`\s+`)
	html = spaceRe.ReplaceAllString(html, " ")

	return strings.TrimSpace(html)
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
