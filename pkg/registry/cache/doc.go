/*
This package implements a TTL cache of registry metadata over a
backing k-v store.

The interface `Storage` stands in for the k-v store (in memory here;
sqlite, memcached and redis in the subpackages); `Store` wraps each
value with the time it was written and treats anything older than
`TTL` as absent, deleting it when it is read.

Keys are namespaced as `regbrowser:{namespace}:{identifier}`, so
clearing the cache never touches anything else kept in the same
store.

Failures of the backing store never reach callers: the cache only
makes things faster, so a broken cache behaves like an empty one.
*/
package cache
