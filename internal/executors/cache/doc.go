// Package cache provides the adaptive caching executor.
//
// Every strategy owns an LRU cache sized by max_size whose entries expire
// after ttl. Lookups are keyed by a KeyFunc; concurrent misses for one key
// share a single call of the wrapped operation. Failed calls are not cached.
//
// Learning:
//
// Misses are attributed to a cause. A stale miss found an expired entry, a
// capacity miss asked for a key evicted recently, and anything else is cold.
// When stale misses dominate the learner proposes twice the TTL, and when
// capacity misses do it proposes twice the size, both bounded by the
// configured limits. Doubling is assumed to recover half of those misses,
// and that gain has to exceed ImprovementMargin.
package cache
