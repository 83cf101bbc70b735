package models

// Article is a news entry of the resthome directory site.
type Article struct {
	ArticleID int64  `json:"articleId"`
	Title     string `json:"title"`
}

// ArticleWithDate is an entry of the paginated article list.
type ArticleWithDate struct {
	Article
	Date string `json:"date"`
}

// ArticleDetails is the body of an article and its related reads.
type ArticleDetails struct {
	Title    string    `json:"title"`
	Source   string    `json:"source"`
	Hits     int       `json:"hits"`
	Datetime string    `json:"datetime"`
	HTML     string    `json:"html"`
	Related  []Article `json:"related"`
}

// Resthome is a listing entry of a care home.
type Resthome struct {
	Title      string  `json:"title"`
	Loc        string  `json:"loc"`
	BedCount   int     `json:"bedCount"`
	Pricing    string  `json:"pricing"`
	ResthomeID int64   `json:"resthomeId"`
	Image      *string `json:"image"`
}

// Region is a geographic filter of the resthome directory.
type Region struct {
	Name     string `json:"name"`
	RegionID string `json:"regionId"`
}

// ResthomesPage is one page of resthome search results for a region.
type ResthomesPage struct {
	Title        string     `json:"title"`
	Count        int        `json:"count"`
	SubRegions   []Region   `json:"subRegions"`
	Results      []Resthome `json:"results"`
	LocalHotline *string    `json:"localHotline"`
}

// ResthomeDetails is the full description of a care home.
type ResthomeDetails struct {
	Title          string   `json:"title"`
	Loc            string   `json:"loc"`
	BedCount       int      `json:"bedCount"`
	Pricing        string   `json:"pricing"`
	Hits           int      `json:"hits"`
	Tel            *string  `json:"tel"`
	General        string   `json:"general"`
	Contact        string   `json:"contact"`
	HTMLIntro      *string  `json:"htmlIntro"`
	HTMLCharge     string   `json:"htmlCharge"`
	HTMLFacilities string   `json:"htmlFacilities"`
	HTMLService    string   `json:"htmlService"`
	HTMLNotes      string   `json:"htmlNotes"`
	Images         []string `json:"images"`
}

// Result types of the site search.
const (
	ResultArticle  = "article"
	ResultResthome = "resthome"
)

// SearchResult is one hit of the site search.
type SearchResult struct {
	Title      string  `json:"title"`
	Date       string  `json:"date"`
	Abstract   string  `json:"abstract"`
	Type       *string `json:"type"`
	ArticleID  *int64  `json:"articleId"`
	ResthomeID *int64  `json:"resthomeId"`
	Href       string  `json:"href"`
	Image      *string `json:"image"`
}

// SearchResults is a page of site search hits.
type SearchResults struct {
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
	RawURL  string         `json:"rawUrl"`
}

// PageMeta is the Open Graph summary of an arbitrary web page.
type PageMeta struct {
	Title      string `json:"title,omitempty"`
	Abstract   string `json:"abstract,omitempty"`
	Author     string `json:"author,omitempty"`
	Source     string `json:"source,omitempty"`
	Image      string `json:"image,omitempty"`
	Redirected string `json:"redirected,omitempty"`
}

// HomeCard is a teaser of a care home shown on the landing screen.
type HomeCard struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ImageURL    string `json:"image_url"`
	Location    string `json:"location"`
	ViewCount   int    `json:"view_count"`
	SearchCount int    `json:"search_count"`
}
