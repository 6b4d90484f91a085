// Package packages provides package directories to worlds. Packages are
// looked up in a local data directory, then in a download cache, and
// finally fetched from the registry as gzipped tarballs.
package packages
