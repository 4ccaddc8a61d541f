// Package newsletter holds the data model shared by every pipeline stage:
// fetched documents, the ranked selection, the budgeted inclusion set, the
// narration script, the render result variant, and per-document processing
// records.
//
// Values in this package are plain data. Stage packages produce and consume
// them but never mutate a Document after it has been fetched.
package newsletter
