package core

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// LatestSentinel asks the resolver for the newest available version.
	LatestSentinel = "latest"

	versionPrefix  = "v"
	wildcardToken  = "x"
	minVersionSize = 3
)

var (
	patternSegment = regexp.MustCompile(`^(\d+|x)$`)
	digitSegment   = regexp.MustCompile(`^\d+$`)
)

// versionNode is one level of the version trie. Children are keyed by the
// integer component; original is set when a candidate ends at this node.
type versionNode struct {
	children map[int]*versionNode
	original string
}

func newVersionNode() *versionNode {
	return &versionNode{children: map[int]*versionNode{}}
}

func (n *versionNode) maxKey() (int, bool) {
	if len(n.children) == 0 {
		return 0, false
	}
	keys := make([]int, 0, len(n.children))
	for key := range n.children {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys[len(keys)-1], true
}

// wildcardKey picks the child a wildcard segment descends into. Children
// that are complete candidate versions win over children that only exist
// as the base of a fork, so 1.2.x prefers 1.2.2 over a fork 1.2.3.1 whose
// base 1.2.3 was never released.
func (n *versionNode) wildcardKey() (int, bool) {
	best, found := 0, false
	for key, child := range n.children {
		if child.original == "" {
			continue
		}
		if !found || key > best {
			best, found = key, true
		}
	}
	if found {
		return best, true
	}
	return n.maxKey()
}

// IsVersionPattern reports whether value contains a wildcard segment.
func IsVersionPattern(value string) bool {
	segments := strings.Split(strings.TrimPrefix(value, versionPrefix), ".")
	for _, segment := range segments {
		if segment == wildcardToken {
			return true
		}
	}
	return false
}

// FindLatestMatching returns the best candidate for pattern. An empty
// pattern selects the overall latest version. Candidates that do not
// parse into at least three integer components are ignored.
func FindLatestMatching(versions []string, pattern string) (string, error) {
	segments, err := parsePattern(pattern, versions)
	if err != nil {
		return "", err
	}
	root := buildVersionTrie(versions)

	node := root
	for _, segment := range segments {
		if segment == wildcardToken {
			key, ok := node.wildcardKey()
			if !ok {
				return "", VersionPatternError(pattern, "no version matches pattern", versions)
			}
			node = node.children[key]
			continue
		}
		value, _ := strconv.Atoi(segment)
		next, ok := node.children[value]
		if !ok {
			return "", VersionPatternError(pattern, "no version matches pattern", versions)
		}
		node = next
	}
	for {
		key, ok := node.maxKey()
		if !ok {
			break
		}
		node = node.children[key]
	}
	if node == root || node.original == "" {
		return "", VersionPatternError(pattern, "no version matches pattern", versions)
	}
	return node.original, nil
}

// LatestVersion is FindLatestMatching without a constraint.
func LatestVersion(versions []string) (string, error) {
	return FindLatestMatching(versions, "")
}

func parsePattern(pattern string, versions []string) ([]string, error) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return []string{wildcardToken, wildcardToken, wildcardToken}, nil
	}
	segments := strings.Split(strings.TrimPrefix(trimmed, versionPrefix), ".")
	if len(segments) < minVersionSize {
		return nil, VersionPatternError(pattern, fmt.Sprintf("pattern needs at least %d segments", minVersionSize), versions)
	}
	seenWildcard := false
	for _, segment := range segments {
		if !patternSegment.MatchString(segment) {
			return nil, VersionPatternError(pattern, fmt.Sprintf("invalid pattern segment %q", segment), versions)
		}
		if segment == wildcardToken {
			seenWildcard = true
			continue
		}
		if seenWildcard {
			return nil, VersionPatternError(pattern, "numeric segment cannot follow a wildcard", versions)
		}
	}
	return segments, nil
}

func buildVersionTrie(versions []string) *versionNode {
	root := newVersionNode()
	for _, version := range versions {
		components, ok := parseVersionComponents(version)
		if !ok {
			continue
		}
		node := root
		for _, component := range components {
			next, exists := node.children[component]
			if !exists {
				next = newVersionNode()
				node.children[component] = next
			}
			node = next
		}
		if node.original == "" {
			node.original = version
		}
	}
	return root
}

func parseVersionComponents(version string) ([]int, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(version), versionPrefix)
	if trimmed == "" {
		return nil, false
	}
	parts := strings.Split(trimmed, ".")
	if len(parts) < minVersionSize {
		return nil, false
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		if !digitSegment.MatchString(part) {
			return nil, false
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, false
		}
		out = append(out, value)
	}
	return out, true
}
