package kvstore

import "context"

type namespaced struct {
	base   Storage
	prefix string
}

// Namespace scopes every key of base under prefix as "<prefix>:<key>". An empty
// prefix returns base unchanged.
func Namespace(base Storage, prefix string) Storage {
	if prefix == "" {
		return base
	}
	return namespaced{base: base, prefix: prefix + ":"}
}

func (n namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.base.Get(ctx, n.prefix+key)
}

func (n namespaced) Set(ctx context.Context, key, value string) error {
	return n.base.Set(ctx, n.prefix+key, value)
}
