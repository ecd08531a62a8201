package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/metrics"
	"github.com/yourusername/keiba-insight/internal/models"
)

const yahooSourceName = "yahoo_keiba"

// Page kinds reported to metrics.
const (
	pageSchedule = "schedule"
	pageDenma    = "denma"
	pageOdds     = "odds"
)

var (
	scheduleDayPattern  = regexp.MustCompile(`(\d+)日`)
	scheduleHrefPattern = regexp.MustCompile(`/(\d{8})$`)
	horseCellPattern    = regexp.MustCompile(`^(.+?)(牡|牝|せん)(\d+)/`)
	jockeyCellPattern   = regexp.MustCompile(`^(.+?)(\d+\.\d)`)
)

// denmaColumns is the column count of the entry table:
// 枠番, 馬番, 馬名性齢/毛色, 騎手名斤量, 調教師名(所属), 血統, 馬体重, 人気(オッズ).
const denmaColumns = 8

// YahooClient scrapes race schedules, entries and odds from Yahoo! keiba.
type YahooClient struct {
	httpClient  *RateLimitedHTTPClient
	robots      *RobotsChecker
	baseURL     string
	racesPerDay int
	logger      *logger.ScraperLogger
}

// NewYahooClient creates a client. robots may be nil to skip robots.txt checks.
func NewYahooClient(httpClient *RateLimitedHTTPClient, robots *RobotsChecker, baseURL string, racesPerDay int, log *logrus.Logger) *YahooClient {
	if log == nil {
		log = logger.Discard()
	}
	if racesPerDay <= 0 {
		racesPerDay = models.RacesPerDay
	}
	return &YahooClient{
		httpClient:  httpClient,
		robots:      robots,
		baseURL:     strings.TrimRight(baseURL, "/"),
		racesPerDay: racesPerDay,
		logger:      logger.NewScraperLogger(log),
	}
}

// Name returns the name of the source
func (c *YahooClient) Name() string {
	return yahooSourceName
}

// FetchSchedule lists the race days of a month, de-duplicated and sorted by
// date.
func (c *YahooClient) FetchSchedule(ctx context.Context, year, month int) ([]models.RaceDay, error) {
	url := fmt.Sprintf("%s/keiba/schedule/monthly?year=%d&month=%d", c.baseURL, year, month)
	doc, err := c.fetchDocument(ctx, pageSchedule, url)
	if err != nil {
		return nil, err
	}

	days := parseSchedule(doc, year, month)
	c.logger.LogScheduleFetched(year, month, len(days))
	return days, nil
}

func parseSchedule(doc *html.Node, year, month int) []models.RaceDay {
	seen := make(map[models.RaceDay]bool)
	var days []models.RaceDay

	for _, cell := range findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "td" &&
			hasClass(n, "hr-tableSchedule__data") && hasClass(n, "hr-tableSchedule__data--date")
	}) {
		link := findFirst(cell, isElement("a"))
		if link == nil {
			continue
		}
		m := scheduleDayPattern.FindStringSubmatch(models.NormalizeText(ownText(cell)))
		if m == nil {
			continue
		}
		day, _ := strconv.Atoi(m[1])

		idMatch := scheduleHrefPattern.FindStringSubmatch(getAttribute(link, "href"))
		if idMatch == nil {
			continue
		}

		d := models.RaceDay{
			Date:   fmt.Sprintf("%04d-%02d-%02d", year, month, day),
			Venue:  models.ResolveVenue(extractText(link)),
			BaseID: idMatch[1],
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}

	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
	return days
}

// FetchRaceCard retrieves the entry list of race n of a race day.
func (c *YahooClient) FetchRaceCard(ctx context.Context, baseID string, n int) (*models.RaceCard, error) {
	raceID, err := models.BuildRaceID(baseID, n)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/keiba/race/denma/%s", c.baseURL, raceID)
	doc, err := c.fetchDocument(ctx, pageDenma, url)
	if err != nil {
		return nil, err
	}

	card, err := parseRaceCard(doc, raceID, n)
	if err != nil {
		return nil, err
	}
	c.logger.LogRaceCardFetched(raceID, card.Venue, n, len(card.Entries))
	return card, nil
}

func parseRaceCard(doc *html.Node, raceID string, n int) (*models.RaceCard, error) {
	info := findAll(doc, elementWithClass("div", "hr-predictRaceInfo__text"))
	title := findFirst(doc, elementWithClass("h2", "hr-predictRaceInfo__title"))
	if len(info) < 3 || title == nil {
		return nil, NewDataSourceError(yahooSourceName, ErrCodeInvalidData, "race info not found for "+raceID, ErrInvalidData)
	}

	card := &models.RaceCard{
		RaceID:     raceID,
		Date:       extractText(info[0]),
		Venue:      models.ResolveVenue(extractText(info[1])),
		StartTime:  strings.TrimSpace(strings.ReplaceAll(extractText(info[2]), "発走", "")),
		RaceName:   extractText(title),
		RaceNumber: n,
	}

	table := findFirst(doc, isElement("table"))
	if table == nil {
		return nil, NewDataSourceError(yahooSourceName, ErrCodeInvalidData, "entry table not found for "+raceID, ErrInvalidData)
	}
	grid := tableGrid(table)
	if len(grid) == 0 || len(grid[0]) != denmaColumns {
		return nil, NewDataSourceError(yahooSourceName, ErrCodeInvalidData, "unexpected entry table layout for "+raceID, ErrInvalidData)
	}

	label := card.RaceNumberLabel()
	for _, row := range grid[1:] {
		if len(row) != denmaColumns {
			continue
		}
		entry := models.RaceCardEntry{
			FrameNumber:  atoiPtr(row[0]),
			PostPosition: atoiPtr(row[1]),
			Trainer:      row[4],
			RaceID:       raceID,
			Date:         card.Date,
			Venue:        card.Venue,
			StartTime:    card.StartTime,
			RaceName:     card.RaceName,
			RaceNumber:   label,
		}
		if m := horseCellPattern.FindStringSubmatch(row[2]); m != nil {
			entry.HorseName = strings.TrimSpace(m[1])
			entry.Sex = m[2]
			entry.Age = atoiPtr(m[3])
		}
		if m := jockeyCellPattern.FindStringSubmatch(row[3]); m != nil {
			entry.Jockey = strings.TrimSpace(m[1])
			if w, err := decimal.NewFromString(m[2]); err == nil {
				entry.WeightCarried = &w
			}
		}
		card.Entries = append(card.Entries, entry)
	}

	if len(card.Entries) == 0 {
		return nil, NewDataSourceError(yahooSourceName, ErrCodeInvalidData, "no entries for "+raceID, ErrInvalidData)
	}
	return card, nil
}

// FetchDayRaceCards retrieves races 1..racesPerDay of a race day in order.
// Races that fail are logged and skipped; an error is returned only when
// the context ends.
func (c *YahooClient) FetchDayRaceCards(ctx context.Context, baseID string) ([]models.RaceCard, error) {
	var cards []models.RaceCard
	for n := 1; n <= c.racesPerDay; n++ {
		card, err := c.FetchRaceCard(ctx, baseID, n)
		if err != nil {
			if ctx.Err() != nil {
				return cards, ctx.Err()
			}
			raceID, _ := models.BuildRaceID(baseID, n)
			c.logger.LogRaceCardSkipped(raceID, err)
			continue
		}
		cards = append(cards, *card)
	}
	return cards, nil
}

// FetchOdds retrieves live win odds. Popularity is the min-rank of the win
// odds, lowest odds first.
func (c *YahooClient) FetchOdds(ctx context.Context, raceID string) ([]models.OddsEntry, error) {
	url := fmt.Sprintf("%s/keiba/race/odds/tfw/%s", c.baseURL, raceID)
	doc, err := c.fetchDocument(ctx, pageOdds, url)
	if err != nil {
		return nil, err
	}

	odds, err := parseOdds(doc)
	if err != nil {
		return nil, err
	}
	c.logger.LogOddsFetched(raceID, len(odds), false)
	return odds, nil
}

func parseOdds(doc *html.Node) ([]models.OddsEntry, error) {
	for _, table := range findAll(doc, isElement("table")) {
		grid := tableGrid(table)
		if len(grid) == 0 {
			continue
		}
		postCol, winCol, placeCol := -1, -1, -1
		for i, h := range grid[0] {
			switch strings.TrimSpace(h) {
			case "馬番":
				if postCol < 0 {
					postCol = i
				}
			case "単勝":
				if winCol < 0 {
					winCol = i
				}
			case "複勝":
				if placeCol < 0 {
					placeCol = i
				}
			}
		}
		if postCol < 0 || (winCol < 0 && placeCol < 0) {
			continue
		}

		var entries []models.OddsEntry
		for _, row := range grid[1:] {
			if postCol >= len(row) {
				continue
			}
			post := atoiPtr(row[postCol])
			if post == nil {
				continue
			}
			entry := models.OddsEntry{PostPosition: *post}
			if winCol >= 0 && winCol < len(row) {
				if v, err := decimal.NewFromString(models.NormalizeText(row[winCol])); err == nil {
					entry.WinOdds = &v
				}
			}
			entries = append(entries, entry)
		}
		if winCol >= 0 {
			rankPopularity(entries)
		}
		return entries, nil
	}
	return nil, NewDataSourceError(yahooSourceName, ErrCodeInvalidData, "odds table not found", ErrInvalidData)
}

// rankPopularity assigns 1 + the number of strictly lower odds to every entry
// with odds; ties share the lower rank.
func rankPopularity(entries []models.OddsEntry) {
	for i := range entries {
		if entries[i].WinOdds == nil {
			continue
		}
		rank := 1
		for j := range entries {
			if entries[j].WinOdds != nil && entries[j].WinOdds.LessThan(*entries[i].WinOdds) {
				rank++
			}
		}
		entries[i].Popularity = &rank
	}
}

// fetchDocument checks robots.txt, fetches url through the shared client and
// parses the body as HTML.
func (c *YahooClient) fetchDocument(ctx context.Context, page, url string) (*html.Node, error) {
	if c.robots != nil {
		allowed, err := c.robots.CanFetch(ctx, url)
		if err != nil {
			metrics.RecordScrapeRequest(page, "error")
			return nil, NewDataSourceError(yahooSourceName, ErrCodeInvalidData, "invalid url "+url, err)
		}
		if !allowed {
			metrics.RecordScrapeRequest(page, "forbidden")
			return nil, NewDataSourceError(yahooSourceName, ErrCodeForbidden, url, ErrDisallowedByRobots)
		}
	}

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		metrics.RecordScrapeRequest(page, "error")
		return nil, NewDataSourceError(yahooSourceName, ErrCodeNetworkError, "failed to fetch "+url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordScrapeRequest(page, "not_found")
		return nil, NewDataSourceError(yahooSourceName, ErrCodeNotFound, url, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordScrapeRequest(page, "rate_limited")
		return nil, NewDataSourceError(yahooSourceName, ErrCodeRateLimitExceeded, url, nil)
	case resp.StatusCode != http.StatusOK:
		metrics.RecordScrapeRequest(page, "error")
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, NewDataSourceError(yahooSourceName, ErrCodeServerError, fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, url), nil)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		metrics.RecordScrapeRequest(page, "error")
		return nil, NewDataSourceError(yahooSourceName, ErrCodeInvalidData, "failed to parse "+url, err)
	}
	metrics.RecordScrapeRequest(page, "ok")
	return doc, nil
}

func atoiPtr(s string) *int {
	v, err := strconv.Atoi(models.NormalizeText(s))
	if err != nil {
		return nil
	}
	return &v
}
