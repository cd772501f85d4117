package agent

// buildBranchPath joins branch segments with ".". Empty segments are
// skipped.
func buildBranchPath(parent, child string) string {
	if parent == "" {
		return child
	}

	if child == "" {
		return parent
	}

	return parent + "." + child
}
