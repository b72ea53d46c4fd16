package redis

import "fmt"

// CacheKeyPrefix 是所有实体缓存键的统一命名空间，完整键形如
// coupon_rush:cache:shop:1。
const CacheKeyPrefix = "coupon_rush:cache:"

// ShopCachePrefix 店铺缓存的实体前缀（拼接在 CacheKeyPrefix 之后）。
const ShopCachePrefix = "shop:"

// VoucherCachePrefix 优惠券缓存的实体前缀。
const VoucherCachePrefix = "voucher:"

// OrderLockName 一人一单锁的锁名，按 userID 粒度，不同用户互不影响。
func OrderLockName(userID int64) string {
	return fmt.Sprintf("order:%d", userID)
}

// CounterKey 是 ID 生成器自增计数器的键名，按业务+日期分桶，
// 避免单 key 自增值过大后回绕进时间戳位。
func CounterKey(bizKey, date string) string {
	return fmt.Sprintf("coupon_rush:icr:%s:%s", bizKey, date)
}

// RateLimitUserKey 限流键，按 userID。
func RateLimitUserKey(userID int64) string {
	return fmt.Sprintf("coupon_rush:ratelimit:user:%d", userID)
}

// RateLimitIPKey 限流降级键，按来源 IP。
func RateLimitIPKey(ip string) string {
	return fmt.Sprintf("coupon_rush:ratelimit:ip:%s", ip)
}
