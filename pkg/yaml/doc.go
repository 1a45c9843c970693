// Package yaml implements document-level algorithms on top of the merge
// engine: comparing two YAML documents (with or without regard to key
// order), rendering their differences, and computing the common structure
// shared by two or more documents together with the per-document remainders.
package yaml
