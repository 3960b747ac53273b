// Package naming turns free-text candidate names into safe filename stems.
//
// Sanitize applies a fixed sequence of cleanups to text that came from
// document metadata or a language model: label prefixes such as "Filename:"
// are stripped, control characters and markdown emphasis collapse to spaces,
// quotes and filesystem-unsafe characters are removed, an echoed extension is
// dropped, and the result is NFC-normalized and length-capped. IsAcceptable
// gates the result against sentinel answers such as "null" or "unknown".
//
// InferFromFilename recovers title, author, and year from stems shaped like
// "2021_Title_Author" or "Title - Author".
package naming
