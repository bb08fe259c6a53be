package cdn

import (
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/matzehuels/pipo/pkg/errors"
)

// DefaultBase is the CDN modules are loaded from.
const DefaultBase = "https://esm.sh"

// DefaultTarget is the ECMAScript target requested from the CDN.
const DefaultTarget = "es2022"

// DefaultDependencies are always available to a preview. User entries
// with the same name win.
var DefaultDependencies = map[string]string{
	"react":     "18.2.0",
	"react-dom": "18.2.0",
}

// ComponentStyles maps component libraries to the style sheet they need
// at runtime. The sheet is linked whenever the library is a dependency.
var ComponentStyles = map[string]string{
	"@arco-design/web-react": "https://esm.sh/@arco-design/web-react@2.62.1/dist/css/arco.min.css",
}

// ImportMap is the body of a <script type="importmap"> element.
type ImportMap struct {
	Imports map[string]string `json:"imports"`
}

// Resolution is the result of [Resolver.Resolve].
type Resolution struct {
	// Dependencies holds the merged specifier -> version table.
	Dependencies map[string]string
	// ImportMap maps each specifier to its module URL.
	ImportMap ImportMap
	// Styles lists component library style sheets, sorted.
	Styles []string
}

// URLs returns the specifier -> URL table, suitable for import rewriting.
func (r *Resolution) URLs() map[string]string {
	return maps.Clone(r.ImportMap.Imports)
}

// Resolver builds CDN URLs.
type Resolver struct {
	Base      string
	Target    string
	External  []string          // packages the CDN must not inline
	Bundle    bool              // ask the CDN to bundle sub-dependencies
	KeepNames bool              // keep function and class names
	Alias     map[string]string // package name -> published name
}

// NewResolver returns a resolver for esm.sh with React kept external, so
// every library shares the single React instance of the page.
func NewResolver() *Resolver {
	return &Resolver{
		Base:     DefaultBase,
		Target:   DefaultTarget,
		External: []string{"react", "react-dom"},
	}
}

// ParsePackagePath splits a specifier into package name and subpath.
// For scoped packages the name spans the first two segments.
func ParsePackagePath(spec string) (name, subpath string) {
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) < 2 {
			return spec, ""
		}
		name = parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			subpath = parts[2]
		}
		return name, subpath
	}
	name, subpath, _ = strings.Cut(spec, "/")
	return name, subpath
}

// URL returns the module URL of spec at version. An empty version means
// "latest".
//
// The form is <base>/<pkg>@<version>[/<subpath>][?<query>], where the
// query carries target, external, bundle and keep-names in that order.
// external is left out for react itself.
func (r *Resolver) URL(spec, version string) string {
	name, subpath := ParsePackagePath(spec)
	published := name
	if a, ok := r.Alias[name]; ok && a != "" {
		published = a
	}
	if version == "" {
		version = "latest"
	}

	base := r.Base
	if base == "" {
		base = DefaultBase
	}

	var b strings.Builder
	b.WriteString(strings.TrimSuffix(base, "/"))
	b.WriteString("/")
	b.WriteString(published)
	b.WriteString("@")
	b.WriteString(version)
	if subpath != "" {
		b.WriteString("/")
		b.WriteString(subpath)
	}

	var query []string
	if r.Target != "" {
		query = append(query, "target="+url.QueryEscape(r.Target))
	}
	if len(r.External) > 0 && name != "react" {
		query = append(query, "external="+strings.Join(r.External, ","))
	}
	if r.Bundle {
		query = append(query, "bundle")
	}
	if r.KeepNames {
		query = append(query, "keep-names")
	}
	if len(query) > 0 {
		b.WriteString("?")
		b.WriteString(strings.Join(query, "&"))
	}
	return b.String()
}

// Resolve merges deps over [DefaultDependencies] and maps every entry to
// its URL. When react-dom is present, react-dom/client is added with the
// same version, and react/jsx-runtime likewise for react.
func (r *Resolver) Resolve(deps map[string]string) (*Resolution, error) {
	merged := maps.Clone(DefaultDependencies)
	for spec, v := range deps {
		merged[strings.TrimSpace(spec)] = strings.TrimSpace(v)
	}
	for _, extra := range [][2]string{{"react-dom", "react-dom/client"}, {"react", "react/jsx-runtime"}} {
		if v, ok := merged[extra[0]]; ok {
			if _, set := merged[extra[1]]; !set {
				merged[extra[1]] = v
			}
		}
	}

	res := &Resolution{
		Dependencies: merged,
		ImportMap:    ImportMap{Imports: make(map[string]string, len(merged))},
	}
	for _, spec := range slices.Sorted(maps.Keys(merged)) {
		name, _ := ParsePackagePath(spec)
		if err := errors.ValidatePackageName(name); err != nil {
			return nil, err
		}
		res.ImportMap.Imports[spec] = r.URL(spec, merged[spec])
		if sheet, ok := ComponentStyles[spec]; ok {
			res.Styles = append(res.Styles, sheet)
		}
	}
	return res, nil
}
