// Package cdn maps external dependencies to ES module URLs.
//
// Bare specifiers in user code (react, @scope/lib/sub) are not bundled.
// They are loaded from an ESM CDN such as esm.sh, either through the import
// map of the sandbox document or by rewriting the specifier in place.
//
//	r := cdn.NewResolver()
//	res, err := r.Resolve(map[string]string{"left-pad": "1.3.0"})
//	// res.ImportMap.Imports["left-pad"] ==
//	//   "https://esm.sh/left-pad@1.3.0?target=es2022&external=react,react-dom"
//
// Only exact versions and dist-tags are understood. A [Pinner] turns tags
// into concrete versions by asking the npm registry.
package cdn
