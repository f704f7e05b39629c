package newsapi

// Article is a news result stripped to the fields the pipeline carries
// forward. Descriptions are truncated at fetch time.
type Article struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}
