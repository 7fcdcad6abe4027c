// Package integration contains the ports to the systems stock sync talks to.
//
// Key concepts:
//   - ErpService: Port for the authoritative ERP (inventory rows, warehouse names, SKU mappings)
//   - Storefront: Port for one customer-facing storefront site (product lookup, stock update)
//   - ErrorKind: Classification of upstream failures used for per-item accounting
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
