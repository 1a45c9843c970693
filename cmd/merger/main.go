// Merger merges two or more YAML files recursively and prints the result.
//
// Later files override earlier ones: mappings are merged key by key, while
// sequences and scalars are replaced. Keys keep the position where they first
// appeared, and keys only found in later files are appended.
//
// Usage:
//
//	# Merge files and print the result
//	merger base.yaml prod.yaml
//
//	# Override single values after merging
//	merger base.yaml prod.yaml --set image.tag=v2 --set replicas=3
//
//	# Print a subtree of the merged document
//	merger get spec.ports[0] base.yaml prod.yaml
//
//	# Check a merge against an expected result (exit code 1 and a diff on mismatch)
//	merger verify expected.yaml base.yaml prod.yaml
//
//	# Factor the common part out of several files
//	merger extract dev.yaml prod.yaml
//
// This is particularly useful with shared CI pipelines whose configuration is
// YAML based, so values can be overridden per environment or repository.
package main

func main() {
	Execute()
}
