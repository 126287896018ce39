// Package productsync contains the product synchronization bounded context.
// It pulls product master data from the ERP and turns it into create/update
// batches for the commerce catalog.
//
// Key concepts:
//   - ExternalProduct / ExternalVariant: ERP product templates and variants, rebuilt every run
//   - DomainProduct / DomainVariant: commerce catalog create/update payloads
//   - MapProduct: pure ERP -> catalog transformation
//   - Resolver: partitions a page into creates and updates by external id
//   - Run: the state machine of one sync run (idle, paging, draining, done, failed)
//
// Design Pattern: Ports & Adapters
//   - Ports (ERPClient, CatalogQuery, ProductIngestion, ...) are defined here
//   - Adapters (Odoo JSON-RPC, Medusa Admin API, GORM catalog) live in infrastructure
package productsync
