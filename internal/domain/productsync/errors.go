package productsync

import (
	"context"
	"errors"
)

// ---------------------------------------------------------------------------
// Sync Errors
// ---------------------------------------------------------------------------

var (
	// ERP client errors
	ErrAuthentication = errors.New("productsync: erp authentication failed")
	ErrRemoteProtocol = errors.New("productsync: malformed or error-flagged erp response")
	ErrTransport      = errors.New("productsync: erp transport failure")

	// Pipeline errors
	ErrMapping      = errors.New("productsync: cannot map erp product")
	ErrDispatch     = errors.New("productsync: product ingestion rejected batch")
	ErrCatalogQuery = errors.New("productsync: catalog query failed")
	ErrStoreConfig  = errors.New("productsync: store configuration unavailable")
	ErrMedia        = errors.New("productsync: product media upload failed")

	// Run lifecycle errors
	ErrInvalidTransition = errors.New("productsync: invalid run state transition")
	ErrRunNotFound       = errors.New("productsync: sync run not found")
)

// ErrorKind classifies err into a short, stable label used by run records
// and metrics. Unknown errors are reported as "internal".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrRemoteProtocol):
		return "remote_protocol"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrMapping):
		return "mapping"
	case errors.Is(err, ErrDispatch):
		return "dispatch"
	case errors.Is(err, ErrCatalogQuery):
		return "catalog_query"
	case errors.Is(err, ErrStoreConfig):
		return "store_config"
	case errors.Is(err, ErrMedia):
		return "media"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
