package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Course struct {
	Slug     string `yaml:"slug"`
	Title    string `yaml:"title"`
	PricePEN int    `yaml:"price_pen"`
}

type Catalog struct {
	courses map[string]Course
	order   []string
}

type catalogFile struct {
	Courses []Course `yaml:"courses"`
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	c := &Catalog{courses: make(map[string]Course)}
	for _, course := range file.Courses {
		if course.Slug == "" {
			return nil, fmt.Errorf("catalog entry without slug (title %q)", course.Title)
		}
		if course.PricePEN <= 0 {
			return nil, fmt.Errorf("catalog entry %s has non-positive price", course.Slug)
		}
		if _, dup := c.courses[course.Slug]; dup {
			return nil, fmt.Errorf("duplicate catalog slug %s", course.Slug)
		}
		c.courses[course.Slug] = course
		c.order = append(c.order, course.Slug)
	}
	return c, nil
}

func (c *Catalog) Get(slug string) (Course, bool) {
	course, ok := c.courses[slug]
	return course, ok
}

func (c *Catalog) Titles() map[string]string {
	out := make(map[string]string, len(c.courses))
	for slug, course := range c.courses {
		out[slug] = course.Title
	}
	return out
}

func (c *Catalog) Prices() map[string]int {
	out := make(map[string]int, len(c.courses))
	for slug, course := range c.courses {
		out[slug] = course.PricePEN
	}
	return out
}

func (c *Catalog) Slugs() []string {
	return append([]string(nil), c.order...)
}
