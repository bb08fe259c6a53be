package sandbox

import (
	"encoding/json"
	"io"
	"maps"
	"strings"

	"golang.org/x/net/html"

	"github.com/matzehuels/pipo/pkg/cdn"
	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/vfs"
)

const rootElement = "<div id=\"root\"></div>\n"

// Inject adds the sandbox to a project's own HTML document.
//
// The import map, base styles and stylesheets are written right after
// <head>, or before the first element when there is no head. The bootstrap is
// written before </body>, or at the end of the document. An import map
// already present is merged into the generated one, with opts winning on
// conflicts, and removed. Module scripts that load project files are removed
// because the bootstrap mounts the entry. A #root element is added when the
// document has none.
func Inject(src string, opts Options) (string, error) {
	found, err := prescan(src)
	if err != nil {
		return "", err
	}
	if len(found.imports) > 0 {
		merged := found.imports
		maps.Copy(merged, opts.ImportMap.Imports)
		opts.ImportMap = cdn.ImportMap{Imports: merged}
	}
	d, err := opts.data()
	if err != nil {
		return "", err
	}
	head, err := render("head", d)
	if err != nil {
		return "", err
	}
	body, err := render("body", d)
	if err != nil {
		return "", err
	}
	if !found.hasRoot {
		body = rootElement + body
	}

	var (
		b        strings.Builder
		headDone bool
		bodyDone bool
		skip     string
	)
	writeHead := func() {
		if !headDone {
			b.WriteString(head)
			headDone = true
		}
	}
	writeBody := func() {
		if !bodyDone {
			writeHead()
			b.WriteString(body)
			bodyDone = true
		}
	}

	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "tokenize index.html")
			}
			break
		}
		if skip != "" {
			if tt == html.EndTagToken {
				if name, _ := z.TagName(); string(name) == skip {
					skip = ""
				}
			}
			continue
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, attrs := tagAttrs(z)
			switch {
			case name == "head":
				b.Write(z.Raw())
				writeHead()
				continue
			case name == "script" && replacedScript(attrs):
				if tt == html.StartTagToken {
					skip = "script"
				}
				continue
			case name != "html":
				writeHead()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "head":
				writeHead()
			case "body", "html":
				writeBody()
			}
		}
		b.Write(z.Raw())
	}
	writeBody()
	return b.String(), nil
}

type prescanResult struct {
	imports map[string]string
	hasRoot bool
}

// prescan collects the document's import map and looks for #root.
func prescan(src string) (*prescanResult, error) {
	res := &prescanResult{imports: map[string]string{}}
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "tokenize index.html")
			}
			return res, nil
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, attrs := tagAttrs(z)
		if attrs["id"] == "root" {
			res.hasRoot = true
		}
		if name != "script" || attrs["type"] != "importmap" || tt != html.StartTagToken {
			continue
		}
		if z.Next() != html.TextToken {
			continue
		}
		var im cdn.ImportMap
		if err := json.Unmarshal(z.Text(), &im); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse import map in index.html")
		}
		maps.Copy(res.imports, im.Imports)
	}
}

func tagAttrs(z *html.Tokenizer) (string, map[string]string) {
	name, more := z.TagName()
	attrs := map[string]string{}
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		attrs[string(key)] = string(val)
	}
	return string(name), attrs
}

func replacedScript(attrs map[string]string) bool {
	switch attrs["type"] {
	case "importmap":
		return true
	case "module":
		return vfs.IsLocal(attrs["src"])
	}
	return false
}
