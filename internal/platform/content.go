package platform

// PostType names a host content type.
type PostType string

const (
	PostTypePage        PostType = "page"
	PostTypeService     PostType = "service"
	PostTypeProject     PostType = "project"
	PostTypeTestimonial PostType = "testimonial"
)

// Post is a page or custom-type post.
type Post struct {
	ID        int64
	Type      PostType
	Slug      string
	Title     string
	Content   string
	Excerpt   string
	Status    string // publish, draft
	MenuOrder int
	Meta      map[string]string
}

// Menu is a named navigation menu.
type Menu struct {
	ID   int64
	Name string
}

// MenuItem links a menu entry to a page (PageID) or an external URL.
type MenuItem struct {
	Title    string
	PageID   int64
	URL      string
	Position int
}

// Well-known option names.
const (
	OptionAdminEmail  = "admin_email"
	OptionShowOnFront = "show_on_front"
	OptionPageOnFront = "page_on_front"
)
