// Package authclient is a Go client for the storefront API.
//
// It keeps the current token pair in a TokenStore, transparently refreshes
// expired access tokens through a single-flight Coordinator and projects
// the outcome of every auth operation into a Session.
package authclient
