// Package textutil provides token fingerprints and cosine similarity for
// comparing document names.
//
// Tokenization lowercases text, splits on anything that is not a letter or
// digit in any script, and drops tokens shorter than two runes. Fingerprints
// are term-frequency vectors that can be re-weighted with corpus IDF so
// common words such as "edition" or "volume" contribute little.
package textutil
