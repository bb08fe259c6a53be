// Package depgraph builds the import graph of a virtual project and derives
// the order in which files are compiled.
//
// # Building
//
// [Builder] adds every file as a node, then asks an [Analyzer] for the local
// dependencies of each script. Only relative imports that resolve to a file
// in the set become edges; package imports are left to the external
// dependency resolver. An analysis failure is logged and treated as "no
// dependencies" so one broken file never aborts the build.
//
//	g := depgraph.NewBuilder(nil, logger).Build(ctx, files)
//	order := g.Order()
//	for _, path := range order.Paths {
//	    // dependencies come before dependents
//	}
//
// # Ordering
//
// [Graph.Order] is a depth-first post-order that starts from style sheets,
// then walks the remaining files in insertion order. A cycle is broken at
// the edge that closes it: the edge is reported in [Order.Cycles] and a
// warning is logged, but every node still appears exactly once.
//
// # Rendering
//
// [ToDOT] and [RenderSVG] draw the graph for the graph command.
package depgraph
