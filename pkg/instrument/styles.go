package instrument

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matzehuels/pipo/pkg/syntax"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// StyleImports converts style sheet imports into runtime statements.
//
// A local sheet is inlined into a statement that appends a <style> element
// to document.head. The file is looked up with [vfs.ResolveStyle]; when it
// cannot be found the import becomes an empty statement. Any other sheet is
// loaded through a <link> element. The generated code is a single line.
type StyleImports struct{}

func (StyleImports) Name() string { return "style-imports" }

func (StyleImports) Process(n syntax.Node, c *Context) {
	d, ok := n.(*syntax.ImportDecl)
	if !ok || d.TypeOnly || !vfs.IsStyle(d.Source.Value) {
		return
	}
	spec := d.Source.Value
	prefix := bindingStubs(d)

	if !vfs.IsLocal(spec) {
		href := spec
		if url, ok := c.ExternalDeps[spec]; ok && url != "" {
			href = url
		}
		d.Replace(prefix + LinkStatement(href))
		return
	}

	target, found := vfs.ResolveStyle(vfs.ResolveRelative(c.Filename, spec), c.Files)
	if !found {
		c.Warn(d, "style sheet %s not found", spec)
		d.Replace(prefix + ";")
		return
	}
	css, _ := c.Files.Get(target)
	d.Replace(prefix + StyleStatement(target, css))
}

// StyleStatement returns a one-line statement that appends css as a
// <style data-path=path> element.
func StyleStatement(path, css string) string {
	return fmt.Sprintf(
		"(function(){const style=document.createElement('style');style.setAttribute('data-path',%s);style.textContent=%s;document.head.appendChild(style);})();",
		jsString(path), jsString(css))
}

// LinkStatement returns a one-line statement that appends a style sheet
// <link> pointing at href.
func LinkStatement(href string) string {
	return fmt.Sprintf(
		"(function(){const link=document.createElement('link');link.rel='stylesheet';link.href=%s;document.head.appendChild(link);})();",
		jsString(href))
}

// bindingStubs keeps bindings of a replaced style import defined.
func bindingStubs(d *syntax.ImportDecl) string {
	var b strings.Builder
	for _, name := range d.Bindings() {
		fmt.Fprintf(&b, "const %s={};", name)
	}
	if d.Named != "" {
		named := strings.Join(strings.Fields(d.Named), " ")
		fmt.Fprintf(&b, "const {%s}={};", strings.ReplaceAll(named, " as ", ": "))
	}
	return b.String()
}

// jsString encodes s as a JavaScript string literal without raw newlines.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
