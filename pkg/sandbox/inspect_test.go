package sandbox

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// domStub is the smallest document the inspect controller touches. Elements
// are created with an id and attributes; tagged elements carry the five
// data-pipo attributes.
const domStub = `
const all = [];
const sent = [];

function ClassList() { this.names = {}; }
ClassList.prototype.add = function (c) { this.names[c] = true; };
ClassList.prototype.remove = function (c) { delete this.names[c]; };
ClassList.prototype.contains = function (c) { return this.names[c] === true; };
ClassList.prototype.toggle = function (c, force) {
  const on = force === undefined ? !this.contains(c) : Boolean(force);
  if (on) this.add(c); else this.remove(c);
  return on;
};

function tagged(el) {
  return ['data-pipo-line', 'data-pipo-column', 'data-pipo-end-line', 'data-pipo-end-column', 'data-pipo-file']
    .every((a) => Object.prototype.hasOwnProperty.call(el.attrs, a));
}

function Element(id, parent, attrs) {
  this.id = id;
  this.parentNode = parent;
  this.attrs = attrs || {};
  this.classList = new ClassList();
  all.push(this);
}
Element.prototype.getAttribute = function (name) {
  return Object.prototype.hasOwnProperty.call(this.attrs, name) ? this.attrs[name] : null;
};
Element.prototype.closest = function () {
  for (let el = this; el; el = el.parentNode) {
    if (tagged(el)) return el;
  }
  return null;
};

function source(line) {
  return {
    'data-pipo-file': '/App.tsx',
    'data-pipo-line': String(line),
    'data-pipo-column': '4',
    'data-pipo-end-line': String(line + 2),
    'data-pipo-end-column': '10',
  };
}

const listeners = {};
function listen(target, type, fn) {
  (listeners[target + ':' + type] = listeners[target + ':' + type] || []).push(fn);
}
function fire(target, type, event) {
  (listeners[target + ':' + type] || []).forEach((fn) => fn(event));
}

const body = new Element('body', null);
const root = new Element('root', body);
const card = new Element('card', root, source(3));
const label = new Element('label', card);
const button = new Element('button', card, source(5));
const footer = new Element('footer', root, source(9));

var document = {
  body: body,
  getElementById: (id) => all.find((el) => el.id === id) || null,
  querySelectorAll: (sel) => all.filter((el) => (sel.charAt(0) === '.' ? el.classList.contains(sel.slice(1)) : tagged(el))),
  addEventListener: (type, fn) => listen('document', type, fn),
};
var window = {
  __PIPO__: { pass: '7' },
  parent: { postMessage: (message) => sent.push(message) },
  addEventListener: (type, fn) => listen('window', type, fn),
};
function MutationObserver() {}
MutationObserver.prototype.observe = function () {};
`

// driver runs after the controller section and exposes what the test needs.
const driver = `
function byId(id) { return document.getElementById(id); }
function toggle(enabled, pass) {
  fire('window', 'message', { data: { type: 'toggle-inspect', pass: pass, data: { enabled: enabled } } });
}
function hover(id) { fire('document', 'mouseover', { target: byId(id) }); }
function click(id) {
  fire('document', 'click', { target: byId(id), clientX: 12, clientY: 34, preventDefault() {}, stopPropagation() {} });
}
function withClass(c) { return all.filter((el) => el.classList.contains(c)).map((el) => el.id); }
function clicks() { return sent.filter((m) => m.type === 'element-click').map((m) => m.data); }
function lastPass() { return sent.length ? sent[sent.length - 1].pass : null; }
function inspecting() { return InspectController.enabled && body.classList.contains('inspect-mode'); }
`

func inspectRuntime(t *testing.T) *goja.Runtime {
	t.Helper()
	// The controller and its listeners end where console mirroring starts;
	// the rest of the module needs a browser.
	controller := section(t, Bootstrap(), "const config", "// Console mirroring.")

	vm := goja.New()
	_, err := vm.RunString(domStub + controller + driver)
	require.NoError(t, err)
	return vm
}

func run(t *testing.T, vm *goja.Runtime, code string) goja.Value {
	t.Helper()
	v, err := vm.RunString(code)
	require.NoError(t, err, code)
	return v
}

func ids(t *testing.T, vm *goja.Runtime, code string) []string {
	t.Helper()
	var out []string
	require.NoError(t, vm.ExportTo(run(t, vm, code), &out))
	return out
}

func TestInspectSingleHighlight(t *testing.T) {
	vm := inspectRuntime(t)

	run(t, vm, "hover('card')")
	assert.Empty(t, ids(t, vm, "withClass('inspect-highlight')"), "disabled controller ignores hovers")

	run(t, vm, "toggle(true)")
	assert.True(t, run(t, vm, "inspecting()").ToBoolean())
	assert.ElementsMatch(t, []string{"card", "button", "footer"}, ids(t, vm, "withClass('inspect-clickable')"))

	run(t, vm, "hover('card'); hover('footer')")
	assert.Equal(t, []string{"footer"}, ids(t, vm, "withClass('inspect-highlight')"))

	// Untagged children highlight their closest tagged ancestor.
	run(t, vm, "hover('label')")
	assert.Equal(t, []string{"card"}, ids(t, vm, "withClass('inspect-highlight')"))
	run(t, vm, "hover('button')")
	assert.Equal(t, []string{"button"}, ids(t, vm, "withClass('inspect-highlight')"))
}

func TestInspectToggleClearsHighlight(t *testing.T) {
	vm := inspectRuntime(t)

	run(t, vm, "toggle(true); hover('button')")
	require.Equal(t, []string{"button"}, ids(t, vm, "withClass('inspect-highlight')"))

	run(t, vm, "toggle(false)")
	assert.Empty(t, ids(t, vm, "withClass('inspect-highlight')"))
	assert.Empty(t, ids(t, vm, "withClass('inspect-clickable')"))
	assert.False(t, run(t, vm, "inspecting()").ToBoolean())

	run(t, vm, "toggle(true)")
	assert.Empty(t, ids(t, vm, "withClass('inspect-highlight')"), "re-enabling restores no highlight")

	run(t, vm, "hover('card'); hover('footer')")
	assert.Equal(t, []string{"footer"}, ids(t, vm, "withClass('inspect-highlight')"))
}

func TestInspectIgnoresOtherPass(t *testing.T) {
	vm := inspectRuntime(t)

	run(t, vm, "toggle(true, '6')")
	assert.False(t, run(t, vm, "inspecting()").ToBoolean())

	run(t, vm, "toggle(true, '7')")
	assert.True(t, run(t, vm, "inspecting()").ToBoolean())
}

func TestInspectClickReportsSource(t *testing.T) {
	vm := inspectRuntime(t)

	run(t, vm, "click('button')")
	assert.Zero(t, run(t, vm, "clicks().length").ToInteger(), "disabled controller sends nothing")

	run(t, vm, "toggle(true); click('label')")
	var got []map[string]any
	require.NoError(t, vm.ExportTo(run(t, vm, "clicks()"), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "/App.tsx", got[0]["file"])
	assert.EqualValues(t, 3, got[0]["startLine"])
	assert.EqualValues(t, 5, got[0]["endLine"])
	assert.EqualValues(t, 4, got[0]["startColumn"])
	assert.EqualValues(t, 10, got[0]["endColumn"])
	assert.EqualValues(t, 12, got[0]["x"])
	assert.EqualValues(t, 34, got[0]["y"])
	assert.Equal(t, "7", run(t, vm, "lastPass()").String())
}
