// Package source obtains the raw bytes of the documents to merge, from the
// OS filesystem, any fs.FS or standard input, and writes results back
// atomically. It knows nothing about YAML.
package source
