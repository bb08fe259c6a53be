// Package instrument rewrites a script before it reaches a compiler backend.
//
// Three processors operate on the tree produced by [syntax.Parse]:
//
//   - [DebugPositions] tags every JSX element with its source span using the
//     data-pipo-* attributes consumed by the sandbox inspector.
//   - [ImportRewriter] points local specifiers at registered module
//     references and bare specifiers at CDN URLs.
//   - [StyleImports] turns style sheet imports into statements that add a
//     <style> or <link> element at runtime.
//
// A [Manager] parses a file once, offers every node to every processor and
// prints the result. Edits never add or remove newlines, so line numbers in
// backend diagnostics still match the original file.
package instrument
