// Package state persists entity layers outside the catalog and loads them
// back. A Store saves and loads the sparse property map of one layer of one
// entity; a Loader moves those maps between a Store and a strata.Catalog.
//
// The core strata package stays persistence-agnostic: layers are replaced
// in one step through Entity.ReplaceLayer, so a hydrated layer invalidates
// cached resolutions exactly like any other write.
//
// Data flow:
//
//	Store.Load -> Loader.Hydrate -> Entity.ReplaceLayer
//	Entity.LayerValues -> Loader.Persist -> Store.Save
//
// Concurrency control:
//
//	Meta.ETag is a content digest computed by the store on every save.
//	Loader.Mutate rejects writes whose expected ETag no longer matches with
//	ErrETagMismatch. Gate lets async collaborators drop results of requests
//	that were superseded before they completed.
package state
