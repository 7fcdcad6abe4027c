package stocksync

import "errors"

var (
	ErrBatchNotFound         = errors.New("stocksync: batch not found")
	ErrActiveBatchExists     = errors.New("stocksync: an active batch already exists")
	ErrInvalidTransition     = errors.New("stocksync: invalid status transition")
	ErrNoSitesConfigured     = errors.New("stocksync: no enabled sites configured")
	ErrSiteNotFound          = errors.New("stocksync: site not found")
	ErrSiteDisabled          = errors.New("stocksync: site disabled")
	ErrSiteResultNotFound    = errors.New("stocksync: site result not found")
	ErrInventoryCacheMissing = errors.New("stocksync: inventory cache missing or expired")
	ErrProductCacheMiss      = errors.New("stocksync: product not in cache")
	ErrInvalidSite           = errors.New("stocksync: invalid site")
	ErrLockNotObtained       = errors.New("stocksync: lock held by another worker")
)
