package sandbox

import (
	_ "embed"
	"encoding/json"
	"maps"
	"strings"
	"text/template"

	"github.com/matzehuels/pipo/pkg/cdn"
	"github.com/matzehuels/pipo/pkg/errors"
)

var (
	//go:embed bootstrap.js
	bootstrapJS string

	//go:embed base.css
	baseCSS string

	//go:embed document.html.tmpl
	documentHTML string
)

var document = template.Must(template.New("document").Parse(documentHTML))

// DefaultTitle is used when Options.Title is empty.
const DefaultTitle = "Preview"

// Options describe one sandbox document.
type Options struct {
	Title string
	Pass  string

	// EntryURL is the module reference of the entry file and EntryFile its
	// virtual path, used in error messages.
	EntryURL  string
	EntryFile string

	ImportMap cdn.ImportMap
	Styles    []string

	// Channel is the host channel URL. Relative URLs are resolved against the
	// document and switched to ws/wss. Empty disables the socket transport.
	Channel string

	// Inspect enables inspect mode right after mount.
	Inspect bool
}

// config is handed to the bootstrap as window.__PIPO__.
type config struct {
	Pass    string            `json:"pass"`
	Entry   string            `json:"entry"`
	File    string            `json:"file,omitempty"`
	Channel string            `json:"channel,omitempty"`
	Inspect bool              `json:"inspect"`
	Imports map[string]string `json:"imports"`
}

type data struct {
	Title     string
	ImportMap string
	BaseCSS   string
	Styles    []string
	Config    string
	Bootstrap string
}

func (o Options) validate() error {
	if o.EntryURL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "sandbox: entry URL is required")
	}
	return nil
}

func (o Options) data() (*data, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	imports := maps.Clone(o.ImportMap.Imports)
	if imports == nil {
		imports = map[string]string{}
	}
	im, err := json.Marshal(cdn.ImportMap{Imports: imports})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode import map")
	}
	cfg, err := json.Marshal(config{
		Pass:    o.Pass,
		Entry:   o.EntryURL,
		File:    o.EntryFile,
		Channel: o.Channel,
		Inspect: o.Inspect,
		Imports: imports,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode sandbox config")
	}
	title := o.Title
	if title == "" {
		title = DefaultTitle
	}
	return &data{
		Title:     title,
		ImportMap: string(im),
		BaseCSS:   baseCSS,
		Styles:    o.Styles,
		Config:    string(cfg),
		Bootstrap: bootstrapJS,
	}, nil
}

// Generate renders a complete sandbox document.
//
// JSON embedded in the document is HTML-escaped, so import map entries
// and the pass id cannot close the surrounding script element.
func Generate(opts Options) (string, error) {
	d, err := opts.data()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := document.Execute(&b, d); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "render sandbox document")
	}
	return b.String(), nil
}

func render(name string, d *data) (string, error) {
	var b strings.Builder
	if err := document.ExecuteTemplate(&b, name, d); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "render sandbox %s", name)
	}
	return b.String(), nil
}

// Bootstrap returns the embedded bootstrap module source.
func Bootstrap() string { return bootstrapJS }

// BaseStyles returns the embedded base stylesheet.
func BaseStyles() string { return baseCSS }
