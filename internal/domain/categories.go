package domain

// Category groups markets and suggests tags for drafting.
type Category struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// categories is the static catalogue served by the query API. Tag
// suggestions seed the draft form; authors may supply their own.
var categories = []Category{
	{Name: "Cryptocurrency", Tags: []string{"Bitcoin", "Ethereum", "REP", "MakerDAO", "price"}},
	{Name: "Politics", Tags: []string{"elections", "US", "president", "congress"}},
	{Name: "Sports", Tags: []string{"NBA", "NFL", "soccer", "baseball"}},
	{Name: "Entertainment", Tags: []string{"movies", "television", "awards", "box office"}},
	{Name: "Finance", Tags: []string{"stocks", "indices", "commodities"}},
	{Name: "Science", Tags: []string{"space", "climate", "research"}},
	{Name: "Other", Tags: nil},
}

// Categories returns the category catalogue. The returned slice is a copy,
// tags included; callers may not mutate the catalogue.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = Category{Name: c.Name, Tags: append([]string(nil), c.Tags...)}
	}
	return out
}
