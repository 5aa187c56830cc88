// Package script assembles CozoScript requests for structured operations.
//
// Every builder is a pure function from structured input to a Request
// (script text plus a parameter map). Builders validate their input and
// return a *dberr.UsageError before emitting anything malformed, so callers
// get a precise local failure instead of an opaque remote syntax error.
//
// STRUCTURAL VS DATA VALUES:
//
// The engine's $name placeholders bind data values only. Relation, column,
// index and rule names are structural and are inlined after validation
// with literal.Ident. Literal row data for bulk writes is inlined with the
// literal encoder. Dynamic search payloads (query vectors, query text) and
// node sets for graph algorithms travel out-of-band in Request.Params:
//
//	req, _ := script.VectorSearch(script.SearchCall{
//	    Relation: "docs", Index: "embedding",
//	    Fields:   []string{"id", "title"},
//	    Query:    []float32{0.1, 0.2},
//	    K:        5,
//	})
//	// req.Script:
//	//   ?[id, title, distance] := ~docs:embedding{id, title | query: q, k: 5, bind_distance: distance}, q = vec($query)
//	//   :order distance
//	//   :limit 5
//	// req.Params: {"query": [0.1, 0.2]}
//
// TRUST BOUNDARY:
//
// Filter expressions, hybrid join conditions, inline sort rules and
// graph-algorithm expressions are caller-written CozoScript. They are
// checked only for braces and directive injection; the caller owns their
// content.
//
// OMITTED OPTIONS:
//
// Optional keyword arguments are left out of the emitted argument list when
// unset. The engine treats an absent keyword differently from an explicit
// default in places, so "unset" never means "pass the default".
package script
