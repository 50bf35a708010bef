package types

// CacheRoots is the ordered set of cache directories shared by every
// descriptor created in one resolution session. Identity matters: the
// descriptor registry keys instances by the *CacheRoots pointer.
type CacheRoots struct {
	primary   string
	fallbacks []string
}

func NewCacheRoots(primary string, fallbacks []string) *CacheRoots {
	return &CacheRoots{
		primary:   primary,
		fallbacks: append([]string(nil), fallbacks...),
	}
}

// Primary is the only writable root.
func (c *CacheRoots) Primary() string {
	return c.primary
}

// Fallbacks are searched read-only after the primary root.
func (c *CacheRoots) Fallbacks() []string {
	return append([]string(nil), c.fallbacks...)
}

// All returns primary followed by fallbacks.
func (c *CacheRoots) All() []string {
	return append([]string{c.primary}, c.fallbacks...)
}
