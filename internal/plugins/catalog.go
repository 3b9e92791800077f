// Package plugins checks, installs and activates the plugins the theme
// recommends. The catalog is compiled in; plugin state always comes from the
// host registry and is never cached.
package plugins

// Descriptor identifies a recommended plugin.
type Descriptor struct {
	Key            string `json:"key"`  // directory slug
	DisplayName    string `json:"name"` // shown in the wizard
	FileIdentifier string `json:"file"` // "<folder>/<main>.php" in the host registry
	Required       bool   `json:"required"`
	MinVersion     string `json:"min_version,omitempty"`
}

// Catalog is an ordered, immutable list of descriptors.
type Catalog []Descriptor

// Page builder the theme mirrors container width into.
const PageBuilderKey = "elementor"

// DefaultCatalog returns the theme's recommended plugins.
func DefaultCatalog() Catalog {
	return Catalog{
		{Key: "elementor", DisplayName: "Elementor", FileIdentifier: "elementor/elementor.php", Required: true, MinVersion: "3.5.0"},
		{Key: "contact-form-7", DisplayName: "Contact Form 7", FileIdentifier: "contact-form-7/wp-contact-form-7.php", Required: true, MinVersion: "5.5"},
		{Key: "wordpress-seo", DisplayName: "Yoast SEO", FileIdentifier: "wordpress-seo/wp-seo.php", MinVersion: "19.0"},
		{Key: "wp-super-cache", DisplayName: "WP Super Cache", FileIdentifier: "wp-super-cache/wp-cache.php", MinVersion: "1.7"},
		{Key: "updraftplus", DisplayName: "UpdraftPlus", FileIdentifier: "updraftplus/updraftplus.php", MinVersion: "1.22"},
	}
}

// Lookup finds a descriptor by key.
func (c Catalog) Lookup(key string) (Descriptor, bool) {
	for _, d := range c {
		if d.Key == key {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ByFile finds a descriptor by plugin file identifier.
func (c Catalog) ByFile(file string) (Descriptor, bool) {
	for _, d := range c {
		if d.FileIdentifier == file {
			return d, true
		}
	}
	return Descriptor{}, false
}

// RequiredKeys returns the keys of required descriptors in catalog order.
func (c Catalog) RequiredKeys() []string {
	var keys []string
	for _, d := range c {
		if d.Required {
			keys = append(keys, d.Key)
		}
	}
	return keys
}

// OptionalKeys returns the keys of optional descriptors in catalog order.
func (c Catalog) OptionalKeys() []string {
	var keys []string
	for _, d := range c {
		if !d.Required {
			keys = append(keys, d.Key)
		}
	}
	return keys
}
