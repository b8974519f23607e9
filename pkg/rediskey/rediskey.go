package rediskey

import "fmt"

const (
	RateLimitPrefix   = "ratelimit"
	OrderNumberPrefix = "seq:order"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// RateLimitKey returns "ratelimit:{client}"
func RateLimitKey(client string) string {
	return NamespaceKey(RateLimitPrefix, client)
}

// OrderNumberKey returns "seq:order:{yymmdd}"
func OrderNumberKey(day string) string {
	return NamespaceKey(OrderNumberPrefix, day)
}
