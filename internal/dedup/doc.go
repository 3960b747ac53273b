// Package dedup finds files in one directory whose names share a signature
// prefix and moves all but one of each group aside.
//
// The scan is shallow and reads the directory listing in name order. Groups
// are built by an explicit fold over that listing, keyed on the first N runes
// of each file name; names shorter than N runes are not grouped. The member
// with the longest name stays in place, ties going to the first listed.
package dedup
