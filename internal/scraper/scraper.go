package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/phivolcs-events/internal/logger"
	"github.com/pfrederiksen/phivolcs-events/internal/quake"
)

const (
	LatestURL = "https://earthquake.phivolcs.dost.gov.ph/"
	UserAgent = "phivolcs-events/1.0 (github.com/pfrederiksen/phivolcs-events)"
	Timeout   = 15 * time.Second
)

// ErrFetchFailure is returned when the listing page cannot be retrieved or parsed
var ErrFetchFailure = errors.New("fetch failure")

// tableKeywords identify the earthquake table among the page's tables
var tableKeywords = []string{"magnitude", "depth", "latitude", "longitude", "location"}

// Scraper handles fetching and parsing the PHIVOLCS latest earthquakes listing
type Scraper struct {
	client    *http.Client
	url       string
	userAgent string
	log       *logger.Logger
}

// Option configures a Scraper
type Option func(*Scraper)

// WithURL sets the listing page URL
func WithURL(url string) Option {
	return func(s *Scraper) {
		s.url = url
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		s.client.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(s *Scraper) {
		s.userAgent = ua
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// The PHIVOLCS site serves an incomplete certificate chain.
func WithInsecureSkipVerify(skip bool) Option {
	return func(s *Scraper) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: skip}
		s.client.Transport = transport
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Scraper) {
		s.log = l
	}
}

// New creates a new Scraper instance
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client: &http.Client{
			Timeout: Timeout,
		},
		url:       LatestURL,
		userAgent: UserAgent,
		log:       logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the listing page URL
func (s *Scraper) URL() string {
	return s.url
}

// Fetch downloads the listing page and returns its table rows in page order.
// A page without an earthquake table yields no rows and no error.
func (s *Scraper) Fetch(ctx context.Context) ([]quake.Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrFetchFailure, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching page: %w", ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrFetchFailure, resp.StatusCode)
	}

	rows, found, err := parseRows(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}
	if !found {
		s.log.Warn("No earthquake table found", logger.Fields{"url": s.url})
		return rows, nil
	}

	s.log.Info("Fetched listing", logger.Fields{
		"url":  s.url,
		"rows": len(rows),
	})
	return rows, nil
}

// parseRows extracts the rows of the first table that looks like the earthquake listing.
// found is false when no such table exists.
func parseRows(r io.Reader) (rows []quake.Row, found bool, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, false, fmt.Errorf("parsing HTML: %w", err)
	}

	rows = make([]quake.Row, 0)

	// A layout table wrapping the listing mentions the keywords too, so take the
	// first matching table that has no matching table inside it
	table := doc.Find("table").FilterFunction(isListing).FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return sel.Find("table").FilterFunction(isListing).Length() == 0
	}).First()
	if table.Length() == 0 {
		return rows, false, nil
	}

	// Rows of nested tables belong to those tables, not the listing
	trs := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.ParentsFiltered("table").First().IsSelection(table)
	})

	var header []string
	trs.Each(func(i int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th, td")
		if i == 0 {
			header = cellTexts(cells)
			return
		}

		tds := tr.ChildrenFiltered("td")
		if tds.Length() < len(quake.DefaultHeader) {
			return
		}
		values := cellTexts(tds)
		values[len(quake.DefaultHeader)-1] = quake.Normalize(values[len(quake.DefaultHeader)-1])
		rows = append(rows, quake.Row{Cells: values, Header: header})
	})

	return rows, true, nil
}

func isListing(_ int, sel *goquery.Selection) bool {
	text := strings.ToLower(sel.Text())
	for _, kw := range tableKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func cellTexts(cells *goquery.Selection) []string {
	return cells.Map(func(_ int, cell *goquery.Selection) string {
		return strings.TrimSpace(cell.Text())
	})
}
