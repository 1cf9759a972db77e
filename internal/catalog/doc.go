// Package catalog defines the data model for items in the remote content
// service's catalog: titles, contributors, series membership, and the
// quality tier accepted by license requests.
//
// Contributor-bearing fields arrive from the service either as flat display
// strings or as structured name records depending on the endpoint. The
// People type models both shapes explicitly so that formatting logic
// resolves the variant once at ingestion rather than branching throughout.
package catalog
