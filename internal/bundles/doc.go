// Package bundles turns downloaded content bundles into indexed files. A
// bundle is a zip archive dropped into the configured bundle directory; on
// import its members are extracted into the owning base path, indexed, and
// the archive removed.
package bundles
