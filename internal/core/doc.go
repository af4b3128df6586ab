// Package core provides the business logic of the warehouse inventory.
//
// Everything here is independent of HTTP and of the storage engine. The web
// handlers, the inventoryctl command and the tests all drive the same
// [Service], which talks to persistence through the [Store] interface.
//
// # Catalog
//
// Products carry a unique SKU, a category name and a location code of the
// form aisle-shelf-level (for example P1-E2-N3). [Service.CreateProduct] and
// [Service.UpdateProduct] normalize and validate input with [ValidateProduct]
// and return a [*DuplicateSKUError] naming the product that already holds
// the SKU. Stock-only edits go through [Service.UpdateStock].
//
// # Warehouse grid
//
// [BuildGrid] places products into the fixed layout of 3 aisles, 4 shelves
// and 3 levels. Every slot exists even when empty; products whose location
// is malformed or outside the layout end up in [Grid.Unplaced].
//
// # Bulk import
//
// An import runs in three steps:
//
//  1. [ParseImportFile] reads an .xlsx, .xls or .csv upload into [Row] values.
//  2. [ValidateImport] rejects the file for file-level problems and drops
//     invalid rows, returning the products that can be created.
//  3. [Importer.Run] creates them one at a time, reporting an
//     [ImportOutcome] and a percentage after each record.
//
// [Service.StartImport] runs step 3 in the background behind an
// [ImportLimiter]; progress is fanned out to [Service.SubscribeImport].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. Each
// category has a code quoted to support staff (PRD, CAT, IMP, FILE, AUTH,
// DB, REQ, RATE prefixes).
package core
