// Package store provides the object store the pipeline fetches from and
// delivers to. Backends exist for Amazon S3, OpenStack Swift and process
// memory; all satisfy the Store interface.
package store
