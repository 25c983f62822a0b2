// Package security resolves the Owner (UID/GID) a bundle is extracted and
// launched under, and provides the chown-before-write helpers the extractor
// needs to satisfy the bundle extractor's ownership invariant.
package security
