// Package textutil provides text processing utilities for title
// normalization, fuzzy similarity scoring, and path segment sanitization.
//
// The primary use cases are:
//   - Normalizing catalog and file-derived titles for duplicate detection
//   - Computing a word-overlap similarity score between two titles
//   - Sanitizing path segments for safe cross-platform filesystem use
//
// Normalization lowercases text, folds diacritics, strips punctuation, and
// removes translated volume markers so that regional editions of the same
// title compare equal.
package textutil
