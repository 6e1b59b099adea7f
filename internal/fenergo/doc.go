// Package fenergo is the client for the Fenergo Nebula document management
// insights API.
//
// Requests carry the tenant in the X-Tenant-Id header and a bearer token,
// either drawn from an oauth2.TokenSource or forwarded from the caller.
// There is no anonymous or static-token mode: Investigate refuses to send a
// request without credentials.
package fenergo
