package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
)

var (
	numberPattern = regexp.MustCompile(`\d+`)
	spacePattern  = regexp.MustCompile(`[\n\r\t]| +`)
)

const noImage = "/images/no_image.gif"

func missing(selector string) error {
	return fmt.Errorf("%w: no %q", common.ErrUpstreamParse, selector)
}

// one returns the first match of selector under s, or an ErrUpstreamParse.
func one(s *goquery.Selection, selector string) (*goquery.Selection, error) {
	found := s.Find(selector).First()
	if found.Length() == 0 {
		return nil, missing(selector)
	}
	return found, nil
}

// firstNumber returns the first run of digits in s.
func firstNumber(s string) (int64, error) {
	digits := numberPattern.FindString(s)
	if digits == "" {
		return 0, fmt.Errorf("%w: no number in %q", common.ErrUpstreamParse, s)
	}
	return strconv.ParseInt(digits, 10, 64)
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrUpstreamParse, err)
	}
	return n, nil
}

// dropRunes cuts the first n characters of s.
func dropRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return ""
	}
	return string(r[n:])
}

func outerHTML(s *goquery.Selection) (string, error) {
	html, err := goquery.OuterHtml(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUpstreamParse, err)
	}
	return html, nil
}

// ParseArticles parses a page of the article list. A page past the last one
// has no list and fails with common.ErrUpstreamParse.
func ParseArticles(doc *goquery.Document) ([]models.ArticleWithDate, error) {
	list, err := one(doc.Selection, "ul.news-list")
	if err != nil {
		return nil, err
	}

	articles := []models.ArticleWithDate{}
	var parseErr error
	list.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		a := li.Find("a").First()
		id, err := firstNumber(a.AttrOr("href", ""))
		if err != nil {
			parseErr = err
			return false
		}
		articles = append(articles, models.ArticleWithDate{
			Article: models.Article{ArticleID: id, Title: strings.TrimSpace(a.Text())},
			Date:    strings.TrimSpace(li.Find("span").First().Text()),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return articles, nil
}

// ParseArticle parses an article page.
func ParseArticle(doc *goquery.Document) (*models.ArticleDetails, error) {
	view, err := one(doc.Selection, "div.news-view")
	if err != nil {
		return nil, err
	}
	info := view.Find("ul.info > li")
	if info.Length() < 3 {
		return nil, missing("ul.info > li")
	}
	content, err := one(view, "div.news-content")
	if err != nil {
		return nil, err
	}

	hits, err := atoi(dropRunes(strings.TrimSpace(info.Eq(1).Text()), 3))
	if err != nil {
		return nil, err
	}
	html, err := outerHTML(content)
	if err != nil {
		return nil, err
	}

	details := &models.ArticleDetails{
		Title:    strings.TrimSpace(view.Find("h1").First().Text()),
		Source:   dropRunes(strings.TrimSpace(info.Eq(0).Text()), 3),
		Hits:     hits,
		Datetime: strings.TrimSpace(info.Eq(2).Text()),
		HTML:     html,
		Related:  []models.Article{},
	}
	view.Find("div.related-read li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a").First()
		id, err := firstNumber(a.AttrOr("href", ""))
		if err != nil {
			return
		}
		details.Related = append(details.Related, models.Article{ArticleID: id, Title: a.AttrOr("title", "")})
	})
	return details, nil
}

func regions(links *goquery.Selection) []models.Region {
	out := []models.Region{}
	links.Each(func(_ int, a *goquery.Selection) {
		out = append(out, models.Region{
			Name:     strings.TrimSpace(a.Text()),
			RegionID: strings.TrimPrefix(a.AttrOr("href", ""), "/"),
		})
	})
	return out
}

// ParseResthomes parses a page of the resthome listing of a region.
func ParseResthomes(doc *goquery.Document) (*models.ResthomesPage, error) {
	title, err := one(doc.Selection, "div.titbar > h3")
	if err != nil {
		return nil, err
	}
	counter, err := one(doc.Selection, "div.filter span")
	if err != nil {
		return nil, err
	}
	count, err := firstNumber(counter.Text())
	if err != nil {
		return nil, err
	}

	page := &models.ResthomesPage{
		Title:      strings.TrimSuffix(strings.TrimSpace(title.Text()), "养老院列表"),
		Count:      int(count),
		SubRegions: regions(doc.Find("div.filter > dl:nth-child(2) a")),
		Results:    []models.Resthome{},
	}
	var parseErr error
	doc.Find("div.list-view li.rest-item").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		item, err := parseResthomeItem(li)
		if err != nil {
			parseErr = err
			return false
		}
		page.Results = append(page.Results, *item)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if tel := doc.Find("div.titbar a[href^='tel:']").First(); tel.Length() > 0 {
		hotline := strings.TrimSpace(tel.Text())
		page.LocalHotline = &hotline
	}
	return page, nil
}

func parseResthomeItem(li *goquery.Selection) (*models.Resthome, error) {
	facts := li.Find("ul > li")
	if facts.Length() < 3 {
		return nil, missing("li.rest-item ul > li")
	}
	id, err := firstNumber(li.Find("a").First().AttrOr("href", ""))
	if err != nil {
		return nil, err
	}
	beds, err := atoi(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(facts.Eq(1).Text()), "床位数："), "张"))
	if err != nil {
		return nil, err
	}

	item := &models.Resthome{
		Title:      strings.TrimSpace(li.Find("div h4").First().Text()),
		Loc:        strings.TrimPrefix(strings.TrimSpace(facts.Eq(0).Text()), "地址："),
		BedCount:   beds,
		Pricing:    strings.TrimPrefix(strings.TrimSpace(facts.Eq(2).Text()), "收费区间："),
		ResthomeID: id,
	}
	if src, ok := li.Find("img").First().Attr("src"); ok && src != noImage {
		item.Image = &src
	}
	return item, nil
}

// labelled returns the text of li without the label held in its em child.
func labelled(li *goquery.Selection) string {
	text := strings.TrimSpace(li.Text())
	return strings.TrimSpace(strings.TrimPrefix(text, strings.TrimSpace(li.Find("em").First().Text())))
}

// flatten joins the texts of items line by line with inner whitespace removed.
func flatten(items *goquery.Selection) string {
	lines := make([]string, 0, items.Length())
	items.Each(func(_ int, li *goquery.Selection) {
		lines = append(lines, strings.ReplaceAll(spacePattern.ReplaceAllString(li.Text(), ""), "\u00a0", " "))
	})
	return strings.Join(lines, "\n")
}

// ParseResthome parses the detail page of a care home.
func ParseResthome(doc *goquery.Document) (*models.ResthomeDetails, error) {
	title, err := one(doc.Selection, "div.inst-summary > h1")
	if err != nil {
		return nil, err
	}
	facts := doc.Find("div.inst-summary > ul li")
	if facts.Length() < 3 {
		return nil, missing("div.inst-summary > ul li")
	}
	counters := doc.Find("div.inst-pic > span")
	if counters.Length() == 0 {
		return nil, missing("div.inst-pic > span")
	}

	beds, err := atoi(strings.TrimSuffix(labelled(facts.Eq(1)), "张"))
	if err != nil {
		return nil, err
	}
	hits, err := atoi(strings.TrimPrefix(strings.TrimSpace(counters.Last().Text()), "人气："))
	if err != nil {
		return nil, err
	}

	sections := make(map[string]string, 4)
	for _, selector := range []string{
		"div.inst-charge > div.cont",
		"div.facilities > div.cont",
		"div.service-content > div.cont",
		"div.inst-notes > div.cont",
	} {
		s, err := one(doc.Selection, selector)
		if err != nil {
			return nil, err
		}
		if sections[selector], err = outerHTML(s); err != nil {
			return nil, err
		}
	}

	details := &models.ResthomeDetails{
		Title:          strings.TrimSpace(title.Text()),
		Loc:            labelled(facts.Eq(0)),
		BedCount:       beds,
		Pricing:        labelled(facts.Eq(2)),
		Hits:           hits,
		General:        flatten(doc.Find("div.base-info li")),
		Contact:        flatten(doc.Find("div.contact-info li")),
		HTMLCharge:     sections["div.inst-charge > div.cont"],
		HTMLFacilities: sections["div.facilities > div.cont"],
		HTMLService:    sections["div.service-content > div.cont"],
		HTMLNotes:      sections["div.inst-notes > div.cont"],
		Images:         []string{},
	}
	doc.Find("div.inst-photos img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			details.Images = append(details.Images, src)
		}
	})
	if tel := doc.Find("#phonenum").First(); tel.Length() > 0 {
		v := strings.TrimSpace(tel.Text())
		details.Tel = &v
	}
	if intro := doc.Find("div.inst-intro > div.cont").First(); intro.Length() > 0 {
		html, err := outerHTML(intro)
		if err != nil {
			return nil, err
		}
		details.HTMLIntro = &html
	}
	return details, nil
}

// ParseCities parses the sitemap into regions keyed by province.
func ParseCities(doc *goquery.Document) (map[string][]models.Region, error) {
	lists := doc.Find("div.citylist > dl")
	if lists.Length() == 0 {
		return nil, missing("div.citylist > dl")
	}
	cities := make(map[string][]models.Region, lists.Length())
	lists.Each(func(_ int, dl *goquery.Selection) {
		province := strings.TrimSpace(dl.Find("dt").First().Text())
		cities[province] = regions(dl.Find("dd.list a"))
	})
	return cities, nil
}

// ParseSearch parses a page of site search hits. A page without hits has
// no counter and yields an empty result.
func ParseSearch(doc *goquery.Document, rawURL string) (*models.SearchResults, error) {
	out := &models.SearchResults{Results: []models.SearchResult{}, RawURL: rawURL}

	hits := doc.Find("div.result")
	counter := doc.Find("span.support-text-top").First()
	if counter.Length() == 0 {
		if hits.Length() > 0 {
			return nil, missing("span.support-text-top")
		}
		return out, nil
	}
	count, err := firstNumber(counter.Text())
	if err != nil {
		return nil, err
	}
	out.Count = int(count)

	hits.Each(func(_ int, div *goquery.Selection) {
		out.Results = append(out.Results, parseSearchResult(div))
	})
	return out, nil
}

func parseSearchResult(div *goquery.Selection) models.SearchResult {
	href := div.Find("a").First().AttrOr("href", "")
	dateFields := strings.Fields(div.Find("span.c-showurl").First().Text())

	r := models.SearchResult{
		Title:    strings.TrimSuffix(strings.TrimSpace(div.Find("h3").First().Text()), " - 养老网"),
		Abstract: strings.TrimSpace(div.Find("div.c-abstract").First().Text()),
		Href:     href,
	}
	if len(dateFields) > 0 {
		r.Date = dateFields[len(dateFields)-1]
	}
	if src, ok := div.Find("img").First().Attr("src"); ok {
		r.Image = &src
	}

	kind, id := classify(href)
	switch kind {
	case models.ResultArticle:
		r.Type, r.ArticleID = &kind, &id
	case models.ResultResthome:
		r.Type, r.ResthomeID = &kind, &id
	}
	return r
}

// classify tells article and resthome links of the directory site apart.
// Index pages (trailing slash) are neither.
func classify(href string) (string, int64) {
	if strings.HasSuffix(href, "/") {
		return "", 0
	}
	for kind, marker := range map[string]string{
		models.ResultArticle:  "yanglao.com.cn/article/",
		models.ResultResthome: "yanglao.com.cn/resthome/",
	} {
		i := strings.Index(href, marker)
		if i < 0 {
			continue
		}
		if id, err := firstNumber(href[i+len(marker):]); err == nil {
			return kind, id
		}
	}
	return "", 0
}

// ParsePageMeta summarizes a page from its Open Graph tags, falling back to
// the title element and the favicon. Relative images resolve against page.
func ParsePageMeta(doc *goquery.Document, page *url.URL) *models.PageMeta {
	property := func(name string) (string, bool) {
		return doc.Find(fmt.Sprintf("meta[property=%q]", name)).First().Attr("content")
	}
	resolve := func(ref string) string {
		u, err := page.Parse(ref)
		if err != nil {
			return ref
		}
		return u.String()
	}

	meta := &models.PageMeta{}
	if v, ok := property("og:title"); ok {
		meta.Title = v
	} else {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	meta.Abstract, _ = property("og:description")
	meta.Author, _ = property("og:article:author")
	meta.Source, _ = property("og:site_name")

	if v, ok := property("og:image"); ok {
		meta.Image = resolve(v)
	} else if v, ok := doc.Find("link[rel=icon]").First().Attr("href"); ok {
		meta.Image = resolve(v)
	}
	if v, ok := property("og:url"); ok && v != page.String() {
		meta.Redirected = v
	}
	return meta
}
