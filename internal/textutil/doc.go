// Package textutil provides the text processing shared by ingestion,
// prioritization, and script validation.
//
// The primary use cases are:
//   - Converting newsletter HTML into paragraph text (go-readability with a
//     goquery fallback) and normalizing whitespace
//   - TF-IDF term vectors weighted across one batch of issues, so shared
//     newsletter boilerplate does not make unrelated issues look alike
//   - Term overlap for checking that a script mentions each included topic
package textutil
