// Package demo imports the sample marketing content that lets a new site
// preview the theme: four pages, service/project/testimonial posts, the
// primary and footer menus and matching customizer copy.
package demo

import (
	"fmt"

	"sitesetup/internal/platform"
)

// Entry is one page or custom post in the manifest.
type Entry struct {
	Slug    string            `yaml:"slug" json:"slug"`
	Title   string            `yaml:"title" json:"title"`
	Content string            `yaml:"content" json:"content"`
	Excerpt string            `yaml:"excerpt,omitempty" json:"excerpt,omitempty"`
	Meta    map[string]string `yaml:"meta,omitempty" json:"meta,omitempty"`
}

// MenuItemSpec links a menu entry to a manifest page or to a URL.
type MenuItemSpec struct {
	Title    string `yaml:"title" json:"title"`
	PageSlug string `yaml:"page,omitempty" json:"page,omitempty"`
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
}

// MenuSpec is a navigation menu and the theme location it is assigned to.
type MenuSpec struct {
	Name     string         `yaml:"name" json:"name"`
	Location string         `yaml:"location" json:"location"`
	Items    []MenuItemSpec `yaml:"items" json:"items"`
}

// Manifest is the full set of demo content.
type Manifest struct {
	Pages        []Entry           `yaml:"pages" json:"pages"`
	Services     []Entry           `yaml:"services" json:"services"`
	Projects     []Entry           `yaml:"projects" json:"projects"`
	Testimonials []Entry           `yaml:"testimonials" json:"testimonials"`
	Menus        []MenuSpec        `yaml:"menus" json:"menus"`
	ThemeMods    map[string]string `yaml:"theme_mods" json:"theme_mods"`

	// FrontPage is the page slug shown as the static front page.
	FrontPage string `yaml:"front_page" json:"front_page"`
}

// Validate checks references inside the manifest. It performs no I/O.
func (m *Manifest) Validate() error {
	pages := make(map[string]bool, len(m.Pages))
	for _, p := range m.Pages {
		if p.Slug == "" || p.Title == "" {
			return fmt.Errorf("page %q needs a slug and a title", p.Title)
		}
		if pages[p.Slug] {
			return fmt.Errorf("duplicate page slug %q", p.Slug)
		}
		pages[p.Slug] = true
	}

	for typ, entries := range m.posts() {
		for _, e := range entries {
			if e.Title == "" {
				return fmt.Errorf("%s entry %q has no title", typ, e.Slug)
			}
		}
	}

	locations := make(map[string]bool)
	for _, menu := range m.Menus {
		if menu.Name == "" {
			return fmt.Errorf("menu without a name")
		}
		if menu.Location != "" {
			if locations[menu.Location] {
				return fmt.Errorf("location %q assigned twice", menu.Location)
			}
			locations[menu.Location] = true
		}
		for _, it := range menu.Items {
			if it.PageSlug == "" && it.URL == "" {
				return fmt.Errorf("menu %q item %q links nowhere", menu.Name, it.Title)
			}
			if it.PageSlug != "" && !pages[it.PageSlug] {
				return fmt.Errorf("menu %q links unknown page %q", menu.Name, it.PageSlug)
			}
		}
	}

	if m.FrontPage != "" && !pages[m.FrontPage] {
		return fmt.Errorf("front page %q is not in the manifest", m.FrontPage)
	}
	return nil
}

func (m *Manifest) posts() map[platform.PostType][]Entry {
	return map[platform.PostType][]Entry{
		platform.PostTypeService:     m.Services,
		platform.PostTypeProject:     m.Projects,
		platform.PostTypeTestimonial: m.Testimonials,
	}
}

// Menu locations registered by the theme.
const (
	LocationPrimary = "primary"
	LocationFooter  = "footer"
)

// DefaultManifest returns the content shipped with the theme.
func DefaultManifest() *Manifest {
	return &Manifest{
		Pages: []Entry{
			{
				Slug:  "home",
				Title: "Home",
				Content: `<h2>Digital solutions that move your business forward</h2>
<p>We help ambitious companies plan, design and launch websites and products their customers love.</p>
<p><a href="/contact">Start your project</a></p>`,
			},
			{
				Slug:  "about",
				Title: "About Us",
				Content: `<h2>Who we are</h2>
<p>Founded in 2012, our team of strategists, designers and engineers has delivered more than 300 projects for clients across four continents.</p>
<h3>Our values</h3>
<ul><li>Clarity over complexity</li><li>Outcomes over output</li><li>Partnership over transactions</li></ul>`,
			},
			{
				Slug:  "services",
				Title: "Services",
				Content: `<h2>What we do</h2>
<p>From discovery workshops to long-term support, we cover the whole life of your digital product.</p>`,
			},
			{
				Slug:  "contact",
				Title: "Contact",
				Content: `<h2>Let's talk</h2>
<p>Tell us about your project and we will get back to you within one business day.</p>`,
			},
		},
		Services: []Entry{
			{
				Slug:    "web-design",
				Title:   "Web Design",
				Content: `<p>Conversion-focused websites built on a design system you can grow with.</p>`,
				Meta:    map[string]string{"icon": "layout"},
			},
			{
				Slug:    "digital-marketing",
				Title:   "Digital Marketing",
				Content: `<p>Search, social and email campaigns measured against the numbers that matter to you.</p>`,
				Meta:    map[string]string{"icon": "trending-up"},
			},
			{
				Slug:    "brand-strategy",
				Title:   "Brand Strategy",
				Content: `<p>Positioning, messaging and visual identity that make you the obvious choice.</p>`,
				Meta:    map[string]string{"icon": "target"},
			},
		},
		Projects: []Entry{
			{
				Slug:    "northwind-rebrand",
				Title:   "Northwind Rebrand",
				Content: `<p>A complete identity refresh and new marketing site for a regional logistics leader.</p>`,
				Meta:    map[string]string{"client": "Northwind Logistics", "year": "2023"},
			},
			{
				Slug:    "acme-ecommerce",
				Title:   "Acme Online Store",
				Content: `<p>Replatformed a catalog of 12,000 products and lifted conversion by 38%.</p>`,
				Meta:    map[string]string{"client": "Acme Supply Co.", "year": "2024"},
			},
			{
				Slug:    "greenleaf-app",
				Title:   "Greenleaf Booking App",
				Content: `<p>A booking experience for a chain of wellness studios, from prototype to launch in ten weeks.</p>`,
				Meta:    map[string]string{"client": "Greenleaf Studios", "year": "2024"},
			},
		},
		Testimonials: []Entry{
			{
				Slug:    "testimonial-sarah",
				Title:   "Sarah Mitchell",
				Content: `<p>They understood our business faster than any agency we have worked with. The new site paid for itself in a quarter.</p>`,
				Meta:    map[string]string{"role": "Marketing Director, Northwind Logistics", "rating": "5"},
			},
			{
				Slug:    "testimonial-david",
				Title:   "David Chen",
				Content: `<p>Clear communication, realistic timelines and a result our customers keep complimenting.</p>`,
				Meta:    map[string]string{"role": "Founder, Greenleaf Studios", "rating": "5"},
			},
			{
				Slug:    "testimonial-maria",
				Title:   "Maria Lopez",
				Content: `<p>Our online sales grew every month since launch. I recommend them without hesitation.</p>`,
				Meta:    map[string]string{"role": "COO, Acme Supply Co.", "rating": "5"},
			},
		},
		Menus: []MenuSpec{
			{
				Name:     "Primary Menu",
				Location: LocationPrimary,
				Items: []MenuItemSpec{
					{Title: "Home", PageSlug: "home"},
					{Title: "About", PageSlug: "about"},
					{Title: "Services", PageSlug: "services"},
					{Title: "Contact", PageSlug: "contact"},
				},
			},
			{
				Name:     "Footer Menu",
				Location: LocationFooter,
				Items: []MenuItemSpec{
					{Title: "About", PageSlug: "about"},
					{Title: "Services", PageSlug: "services"},
					{Title: "Contact", PageSlug: "contact"},
					{Title: "Privacy Policy", URL: "/privacy-policy"},
				},
			},
		},
		ThemeMods: map[string]string{
			"hero_title":      "Digital Solutions That Move Your Business Forward",
			"hero_subtitle":   "Strategy, design and marketing for companies ready to grow.",
			"hero_cta_text":   "Start Your Project",
			"hero_cta_url":    "/contact",
			"contact_email":   "hello@example.com",
			"contact_phone":   "+1 (555) 010-2030",
			"contact_address": "100 Market Street, Suite 300, San Francisco, CA",
			"footer_text":     "Designed and built with care.",
		},
		FrontPage: "home",
	}
}
