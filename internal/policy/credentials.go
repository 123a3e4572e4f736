package policy

import "path/filepath"

// IsCredential reports whether the path's base name matches the credential
// list or any credential pattern. Credential files are opaque to the agent:
// read, create and update are refused independent of path level, and
// directory listings omit them unless the caller opts in.
func (c *Classifier) IsCredential(path string) bool {
	base := filepath.Base(filepath.Clean(path))
	if c.credentialNames[base] {
		return true
	}
	for _, re := range c.credentialPatterns {
		if re.MatchString(base) {
			return true
		}
	}
	return false
}
