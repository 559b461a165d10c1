// Package pathfilter owns path exclusion and validation for the index.
//
// The blacklist is compiled once from configuration; the whitelist is a
// runtime override pushed through the control socket. Both operate on
// index-relative paths so the same filter serves every base path.
package pathfilter
