package compose

// Blog is a publication a post can be filed under. Its tags are the
// categories offered for that blog.
type Blog struct {
	ID    string   `yaml:"id" json:"id"`
	Title string   `yaml:"title" json:"title"`
	Tags  []string `yaml:"tags" json:"tags"`
}

// Catalog is the list of blogs a writer can post to.
type Catalog []Blog

// Find returns the blog with the given id.
func (c Catalog) Find(id string) (Blog, bool) {
	for _, b := range c {
		if b.ID == id {
			return b, true
		}
	}
	return Blog{}, false
}

// Categories returns the tags of blog id, or nil when no blog matches.
func (c Catalog) Categories(id string) []string {
	b, ok := c.Find(id)
	if !ok || len(b.Tags) == 0 {
		return nil
	}
	return append([]string(nil), b.Tags...)
}
