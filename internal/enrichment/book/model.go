package book

// Type classifies a book.
type Type string

const (
	TypeNovel      Type = "Novel"
	TypeShortStory Type = "ShortStory"
	TypeOther      Type = "Other"
)

// ShortStoriesGenre is the derived genre tag for short-story collections.
const ShortStoriesGenre = "Short Stories"

// Identifier is an industry identifier such as an ISBN.
type Identifier struct {
	Type       string `json:"type" yaml:"type"`
	Identifier string `json:"identifier" yaml:"identifier"`
}

// ImageCandidate is an image URL offered by a source. It is never persisted.
type ImageCandidate struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// SelectedImage is a downloaded image that won selection.
type SelectedImage struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// Rating is a score and vote count from one rating source.
type Rating struct {
	Score *float64 `json:"score"`
	Votes *int     `json:"votes"`
}

// Sales holds circulation signals.
type Sales struct {
	CopiesSold     *int `json:"copiesSold"`
	BestSellerRank *int `json:"bestSellerRank"`
}

// SeriesInfo describes series membership.
type SeriesInfo struct {
	Name     *string `json:"name"`
	Position *int    `json:"position"`
	Type     string  `json:"type"`
}

// Awards summarises award history.
type Awards struct {
	Wins        int      `json:"wins"`
	Nominations int      `json:"nominations"`
	Details     []string `json:"details"`
}

// Rating source keys.
const (
	RatingGoodreads = "goodreads"
	RatingAmazon    = "amazon"
)

// Book is the enriched book record.
type Book struct {
	Title               string            `json:"title"`
	Subtitle            *string           `json:"subtitle"`
	BookType            *Type             `json:"bookType"`
	PublishedYear       *int              `json:"publishedYear"`
	IndustryIdentifiers []Identifier      `json:"industryIdentifiers"`
	Genres              []string          `json:"genres"`
	Language            *string           `json:"language"`
	Pages               *int              `json:"pages"`
	Description         *string           `json:"description"`
	CoverImage          *SelectedImage    `json:"coverImage"`
	SecondaryCoverImage *string           `json:"secondaryCoverImage,omitempty"`
	MaturityRating      *string           `json:"maturityRating"`
	Ratings             map[string]Rating `json:"ratings"`
	Sales               Sales             `json:"sales"`
	SeriesInfo          SeriesInfo        `json:"seriesInfo"`
	CanonicalLink       *string           `json:"canonicalLink"`
	Awards              Awards            `json:"awards"`
	Publisher           *string           `json:"publisher"`
}

// NewBook returns an empty record for title with every optional field unset.
func NewBook(title string) Book {
	return Book{
		Title:               title,
		IndustryIdentifiers: []Identifier{},
		Genres:              []string{},
		Ratings: map[string]Rating{
			RatingGoodreads: {},
			RatingAmazon:    {},
		},
		SeriesInfo: SeriesInfo{Type: "OTHER"},
		Awards:     Awards{Details: []string{}},
	}
}

// Author is the enriched author record.
type Author struct {
	Name         string         `json:"name"`
	BirthDate    *string        `json:"birthDate"`
	BirthPlace   *string        `json:"birthPlace"`
	Biography    *string        `json:"biography"`
	ProfileImage *SelectedImage `json:"profileImage"`
	Professions  []string       `json:"professions"`
}

// Publisher is the enriched publisher record.
type Publisher struct {
	Name         *string        `json:"name"`
	Founded      *int           `json:"founded"`
	Headquarters *string        `json:"headquarters"`
	Website      *string        `json:"website"`
	Description  *string        `json:"description"`
	Logo         *SelectedImage `json:"logo"`
}

// AuthorData is what a knowledge-graph lookup returns for an author.
type AuthorData struct {
	Name        string   `json:"name"`
	BirthDate   *string  `json:"birthDate,omitempty"`
	BirthPlace  *string  `json:"birthPlace,omitempty"`
	Biography   *string  `json:"biography,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
	Professions []string `json:"professions,omitempty"`
}

// PublisherData is what a knowledge-graph lookup returns for a publisher.
type PublisherData struct {
	Name         string  `json:"name"`
	Founded      *int    `json:"founded,omitempty"`
	Headquarters *string `json:"headquarters,omitempty"`
	Website      *string `json:"website,omitempty"`
	Description  *string `json:"description,omitempty"`
	LogoURL      *string `json:"logoUrl,omitempty"`
}
