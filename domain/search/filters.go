package search

// Filters narrows search and scroll operations by payload fields.
type Filters struct {
	version    string
	language   string
	domain     string
	pathPrefix string
}

// FiltersOption is a functional option for Filters.
type FiltersOption func(*Filters)

// WithVersion sets the version filter.
func WithVersion(version string) FiltersOption {
	return func(f *Filters) {
		f.version = version
	}
}

// WithLanguage sets the language filter.
func WithLanguage(language string) FiltersOption {
	return func(f *Filters) {
		f.language = language
	}
}

// WithDomain sets the domain filter.
func WithDomain(domain string) FiltersOption {
	return func(f *Filters) {
		f.domain = domain
	}
}

// WithPathPrefix sets the path prefix filter.
func WithPathPrefix(prefix string) FiltersOption {
	return func(f *Filters) {
		f.pathPrefix = prefix
	}
}

// NewFilters creates a Filters with options.
func NewFilters(opts ...FiltersOption) Filters {
	f := Filters{}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Version returns the version filter.
func (f Filters) Version() string { return f.version }

// Language returns the language filter.
func (f Filters) Language() string { return f.language }

// Domain returns the domain filter.
func (f Filters) Domain() string { return f.domain }

// PathPrefix returns the path prefix filter.
func (f Filters) PathPrefix() string { return f.pathPrefix }

// IsEmpty reports whether no filters are set.
func (f Filters) IsEmpty() bool {
	return f.version == "" && f.language == "" && f.domain == "" && f.pathPrefix == ""
}
