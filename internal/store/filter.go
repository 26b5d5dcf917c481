package store

import "fmt"

// FilterKind selects how packages are matched for generation
type FilterKind int

const (
	FilterURLs FilterKind = iota
	FilterAuthor
	FilterCustomCollection
)

// Filter narrows QueryVersionResults to a set of packages.
type Filter struct {
	Kind FilterKind
	// URLs match case-insensitively for FilterURLs.
	URLs []string
	// Author matches the repository owner case-insensitively.
	Author string
	// Collection is a custom collection name.
	Collection string
}

func ByURLs(urls ...string) Filter {
	return Filter{Kind: FilterURLs, URLs: urls}
}

func ByAuthor(owner string) Filter {
	return Filter{Kind: FilterAuthor, Author: owner}
}

func ByCustomCollection(name string) Filter {
	return Filter{Kind: FilterCustomCollection, Collection: name}
}

func (f Filter) String() string {
	switch f.Kind {
	case FilterURLs:
		return fmt.Sprintf("urls(%d)", len(f.URLs))
	case FilterAuthor:
		return fmt.Sprintf("author(%s)", f.Author)
	case FilterCustomCollection:
		return fmt.Sprintf("customCollection(%s)", f.Collection)
	default:
		return "unknown"
	}
}
